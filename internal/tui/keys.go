package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	send   key.Binding
	edit   key.Binding
	delete key.Binding
	copy   key.Binding
	sync   key.Binding
	pull   key.Binding
	info   key.Binding
	up     key.Binding
	down   key.Binding
	esc    key.Binding
	enter  key.Binding
	quit   key.Binding
}

var keys = keyMap{
	send:   key.NewBinding(key.WithKeys("enter")),
	edit:   key.NewBinding(key.WithKeys("ctrl+e")),
	delete: key.NewBinding(key.WithKeys("ctrl+d")),
	copy:   key.NewBinding(key.WithKeys("ctrl+y")),
	sync:   key.NewBinding(key.WithKeys("ctrl+s")),
	pull:   key.NewBinding(key.WithKeys("ctrl+r")),
	info:   key.NewBinding(key.WithKeys("f1")),
	up:     key.NewBinding(key.WithKeys("pgup")),
	down:   key.NewBinding(key.WithKeys("pgdown")),
	esc:    key.NewBinding(key.WithKeys("esc")),
	enter:  key.NewBinding(key.WithKeys("enter")),
	quit:   key.NewBinding(key.WithKeys("ctrl+c")),
}

const helpLine = "enter отправить  ctrl+e изменить  ctrl+d удалить  ctrl+y копировать ключ  ctrl+s синхр.  ctrl+r перезагрузить  f1 инфо"
