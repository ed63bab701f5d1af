package tui

import (
	"github.com/MKhiriev/go-firesync/models"
)

type chatEventMsg struct {
	event models.Event[models.Message]
}

type observationEndedMsg struct {
	err error
}

type syncErrorMsg struct {
	err error
}

type sentMsg struct {
	key string
	err error
}

type editedMsg struct {
	err error
}

type deletedMsg struct {
	key string
	err error
}

type syncDoneMsg struct {
	err error
}

type copiedMsg struct {
	key string
	err error
}

type clearStatusMsg struct{}
