// Package vouch is an append-only ledger of star ratings.
package vouch

import (
	"context"
	"errors"
	"fmt"
	"path"
	"reflect"
	"strings"
	"time"

	"discord-invite-tracker/internal/metrics"
	"discord-invite-tracker/internal/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrInvalidStars = errors.New("stars must be between 1 and 5")
	ErrInvalidInput = errors.New("invalid vouch")
	ErrInvalidProof = errors.New("proof must be a png, jpg, or jpeg image")
)

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Input is a vouch as submitted by a rater.
type Input struct {
	RaterID   string `json:"rater_id" validate:"required"`
	RaterName string `json:"rater_name" validate:"required"`
	Stars     int    `json:"stars" validate:"min=1,max=5"`
	Message   string `json:"message" validate:"required,max=2000"`
	ProofURL  string `json:"proof_url" validate:"omitempty,url"`
	// ProofFilename, when set, must carry an image extension.
	ProofFilename string `json:"proof_filename" validate:"omitempty"`
}

// Store is the persistence the ledger needs.
type Store interface {
	InsertVouch(ctx context.Context, v *models.Vouch) error
	ListVouches(ctx context.Context, limit, offset int) ([]models.Vouch, error)
	CountVouches(ctx context.Context) (int, error)
}

type Ledger struct {
	store    Store
	validate *validator.Validate
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewLedger(store Store, logger *zap.Logger, m *metrics.Metrics) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Ledger{
		store:    store,
		validate: v,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// IsImage reports whether filename has a png or jpeg extension.
func IsImage(filename string) bool {
	return imageExtensions[strings.ToLower(path.Ext(filename))]
}

func (l *Ledger) check(in Input) error {
	err := l.validate.Struct(in)
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate vouch: %w", err)
		}
		var msgs []string
		for _, fe := range fieldErrs {
			if fe.Field() == "stars" {
				return ErrInvalidStars
			}
			msgs = append(msgs, fe.Field()+" "+fe.Tag())
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
	}
	if in.ProofFilename != "" && !IsImage(in.ProofFilename) {
		return ErrInvalidProof
	}
	return nil
}

// Record validates in and appends it to the ledger. The rater is both the
// subject and the author of the vouch.
func (l *Ledger) Record(ctx context.Context, in Input) (*models.Vouch, error) {
	if err := l.check(in); err != nil {
		return nil, err
	}

	v := &models.Vouch{
		UserID:        in.RaterID,
		UserName:      in.RaterName,
		Stars:         in.Stars,
		Message:       in.Message,
		ProofURL:      in.ProofURL,
		VouchedByID:   in.RaterID,
		VouchedByName: in.RaterName,
		Timestamp:     l.now().UTC().Format(models.VouchTimeLayout),
	}
	if err := l.store.InsertVouch(ctx, v); err != nil {
		return nil, fmt.Errorf("save vouch: %w", err)
	}

	l.metrics.Vouch()
	l.logger.Info("vouch recorded",
		zap.Int64("id", v.ID),
		zap.String("user_id", v.UserID),
		zap.Int("stars", v.Stars),
	)
	return v, nil
}

// List returns vouches newest first.
func (l *Ledger) List(ctx context.Context, limit, offset int) ([]models.Vouch, error) {
	return l.store.ListVouches(ctx, limit, offset)
}

func (l *Ledger) Count(ctx context.Context) (int, error) {
	return l.store.CountVouches(ctx)
}
