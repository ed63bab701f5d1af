// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/internal/service"
	"github.com/MKhiriev/go-firesync/models"
)

var (
	ErrUserQuit      = errors.New("вышел из программы")
	ErrAuthorNotSet  = errors.New("author is not set")
	ErrChatNotSet    = errors.New("chat collection is not set")
	errNothingToEdit = errors.New("нет отправленных сообщений")
)

// TUI is the terminal chat over a synchronized collection of messages.
type TUI struct {
	chat      service.Collection[models.Message]
	author    string
	buildInfo models.AppBuildInfo

	logger *logger.Logger
}

func New(chat service.Collection[models.Message], author string, buildInfo models.AppBuildInfo, log *logger.Logger) (*TUI, error) {
	if chat == nil {
		return nil, ErrChatNotSet
	}
	if author == "" {
		return nil, ErrAuthorNotSet
	}
	return &TUI{chat: chat, author: author, buildInfo: buildInfo, logger: log}, nil
}

// Run shows the chat until the user quits or ctx is cancelled.
func (t *TUI) Run(ctx context.Context) error {
	model := newChatModel(ctx, t.chat, t.author, t.buildInfo, t.logger)
	defer model.close()

	finalModel, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}

	result, ok := finalModel.(chatModel)
	if !ok {
		return tea.ErrProgramKilled
	}
	if result.quitByUser {
		return ErrUserQuit
	}
	return nil
}
