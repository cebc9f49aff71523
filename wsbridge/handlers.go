package wsbridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"velicia/generation"
	"velicia/llm"
	"velicia/store"
	"velicia/streamers"
)

func (s *Server) registerHandlers() {
	s.handlers[TypeSendTurn] = s.handleSendTurn
	s.handlers[TypeNewSession] = s.handleNewSession
	s.handlers[TypeListSessions] = s.handleListSessions
	s.handlers[TypeGetSession] = s.handleGetSession
	s.handlers[TypeDeleteSession] = s.handleDeleteSession
	s.handlers[TypeRenameSession] = s.handleRenameSession
	s.handlers[TypeListModels] = s.handleListModels
}

func badRequest(format string, args ...any) error {
	return &requestError{code: CodeBadRequest, err: fmt.Errorf(format, args...)}
}

func notFound(err error) error {
	if errors.Is(err, store.ErrSessionNotFound) {
		return &requestError{code: CodeNotFound, err: err}
	}
	return err
}

func (s *Server) handleSendTurn(c *conn, env *Envelope) (*Envelope, error) {
	var payload SendTurnPayload
	if err := DecodePayload(env, &payload); err != nil {
		return nil, badRequest("decode send_turn: %v", err)
	}
	if strings.TrimSpace(payload.Text) == "" && len(payload.Attachments) == 0 {
		return nil, badRequest("send_turn needs text or an attachment")
	}
	res, err := s.controller.Reserve()
	if err != nil {
		return NewError(env.RequestID, CodeBusy, err.Error())
	}
	ack, turn, err := s.prepareTurn(env, &payload)
	if err != nil {
		res.Release()
		return nil, err
	}

	handler := streamers.NewLoggingHandler(newWSGenerationHandler(c, turn.SessionID), s.logger.Named("generation"))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := res.Run(context.Background(), turn, handler); err != nil {
			s.logger.Warn("send_turn rejected", "session", turn.SessionID, "error", err)
			c.sendError(env.RequestID, CodeGeneration, err.Error())
		}
	}()

	return ack, nil
}

// prepareTurn resolves the session and model for a send_turn and builds its
// ack. The session exists before the ack so the client learns its id up front.
func (s *Server) prepareTurn(env *Envelope, payload *SendTurnPayload) (*Envelope, generation.Turn, error) {
	for i := range payload.Attachments {
		if payload.Attachments[i].Kind == "" {
			payload.Attachments[i].Kind = llm.KindForMIME(payload.Attachments[i].MIMEType)
		}
	}

	sessionID := payload.SessionID
	if sessionID == "" {
		sess, err := s.store.Create()
		if err != nil {
			return nil, generation.Turn{}, err
		}
		sessionID = sess.ID
	} else if _, err := s.store.Get(sessionID); err != nil {
		return nil, generation.Turn{}, notFound(err)
	}

	model := payload.Model
	if model == "" {
		model = s.catalog.DefaultModel()
	}

	ack, err := NewResponse(env.RequestID, TypeSendTurnAck, &SendTurnAckPayload{
		SessionID: sessionID,
		Model:     model,
	})
	if err != nil {
		return nil, generation.Turn{}, err
	}

	return ack, generation.Turn{
		SessionID:   sessionID,
		Text:        payload.Text,
		Model:       model,
		Attachments: payload.Attachments,
	}, nil
}

func (s *Server) handleNewSession(c *conn, env *Envelope) (*Envelope, error) {
	sess, err := s.store.Create()
	if err != nil {
		return nil, err
	}
	return NewResponse(env.RequestID, TypeSession, &SessionPayload{Session: sess})
}

func (s *Server) handleListSessions(c *conn, env *Envelope) (*Envelope, error) {
	return NewResponse(env.RequestID, TypeSessionList, &SessionListPayload{Sessions: s.store.List()})
}

func (s *Server) handleGetSession(c *conn, env *Envelope) (*Envelope, error) {
	var payload SessionRefPayload
	if err := DecodePayload(env, &payload); err != nil {
		return nil, badRequest("decode get_session: %v", err)
	}
	sess, err := s.store.Get(payload.SessionID)
	if err != nil {
		return nil, notFound(err)
	}
	return NewResponse(env.RequestID, TypeSession, &SessionPayload{Session: sess})
}

func (s *Server) handleDeleteSession(c *conn, env *Envelope) (*Envelope, error) {
	var payload SessionRefPayload
	if err := DecodePayload(env, &payload); err != nil {
		return nil, badRequest("decode delete_session: %v", err)
	}
	if s.controller.State(payload.SessionID).Active() {
		return NewError(env.RequestID, CodeBusy, "session has a generation in progress")
	}
	if err := s.store.Delete(payload.SessionID); err != nil {
		return nil, notFound(err)
	}

	deleted, err := NewEvent(TypeSessionDeleted, &payload)
	if err != nil {
		return nil, err
	}
	s.broadcast(deleted)
	return NewResponse(env.RequestID, TypeSessionDeleted, &payload)
}

func (s *Server) handleRenameSession(c *conn, env *Envelope) (*Envelope, error) {
	var payload RenameSessionPayload
	if err := DecodePayload(env, &payload); err != nil {
		return nil, badRequest("decode rename_session: %v", err)
	}
	if strings.TrimSpace(payload.Title) == "" {
		return nil, badRequest("title must not be empty")
	}
	if err := s.store.Rename(payload.SessionID, payload.Title); err != nil {
		return nil, notFound(err)
	}
	sess, err := s.store.Get(payload.SessionID)
	if err != nil {
		return nil, notFound(err)
	}
	return NewResponse(env.RequestID, TypeSession, &SessionPayload{Session: sess})
}

func (s *Server) handleListModels(c *conn, env *Envelope) (*Envelope, error) {
	return NewResponse(env.RequestID, TypeModelList, &ModelListPayload{
		Models:  modelInfos(s.catalog.Models()),
		Default: s.catalog.DefaultModel(),
	})
}
