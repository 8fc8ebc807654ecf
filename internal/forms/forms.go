package forms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"paylive-be/internal/logger"
	"paylive-be/internal/utils"

	"go.uber.org/zap"
)

var (
	ErrMissingFormID  = errors.New("form_id is required")
	ErrMissingAnswers = errors.New("answers are required")
	ErrInvalidEmail   = errors.New("email is invalid")
	ErrFailedSaveForm = errors.New("failed to save form response")
)

type Response struct {
	FormID  string                     `json:"form_id"`
	Email   string                     `json:"email,omitempty"`
	Answers map[string]json.RawMessage `json:"answers"`
}

type Saved struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, resp Response) (*Saved, error)
}

type repository struct {
	db *sql.DB
}

// NewRepository takes the Supabase Postgres handle.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, resp Response) (*Saved, error) {
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return nil, err
	}

	var email sql.NullString
	if resp.Email != "" {
		email = sql.NullString{String: resp.Email, Valid: true}
	}

	var saved Saved
	err = r.db.QueryRowContext(ctx, `
	INSERT INTO form_responses (form_id, email, answers)
	VALUES ($1, $2, $3)
	RETURNING id, created_at
	`, resp.FormID, email, answers).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to insert form response",
			zap.String("form_id", resp.FormID),
			zap.Error(err),
		)
		return nil, ErrFailedSaveForm
	}
	return &saved, nil
}

type Service interface {
	Submit(ctx context.Context, resp Response) (*Saved, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Submit(ctx context.Context, resp Response) (*Saved, error) {
	resp.FormID = strings.TrimSpace(resp.FormID)
	resp.Email = strings.TrimSpace(resp.Email)

	switch {
	case resp.FormID == "":
		return nil, ErrMissingFormID
	case len(resp.Answers) == 0:
		return nil, ErrMissingAnswers
	case resp.Email != "" && !utils.IsValidEmail(resp.Email):
		return nil, ErrInvalidEmail
	}

	saved, err := s.repo.Insert(ctx, resp)
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("form response saved",
		zap.String("form_id", resp.FormID),
		zap.Int64("id", saved.ID),
	)
	return saved, nil
}
