// Package session persists conversation state in redis as one JSON snapshot
// per session, read-modify-written once per turn.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"invoice-assistant/internal/backend"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"
)

var (
	ErrLoadFailed = errors.New("SESSION_LOAD_FAILED")
	ErrSaveFailed = errors.New("SESSION_SAVE_FAILED")
)

const keyPrefix = "conversation:"

// ProfileSource supplies the business profile for session seeding.
type ProfileSource interface {
	GetByUserID(ctx context.Context, userID string) (*models.BusinessProfile, error)
}

// ActivitySource supplies recent-activity strings for session seeding.
type ActivitySource interface {
	RecentActivity(ctx context.Context, userID string, limit int) ([]string, error)
}

type Store struct {
	client    *redis.Client
	profiles  ProfileSource
	activity  ActivitySource
	ttl       time.Duration
	entityCap int
	logger    logger.Logger
}

func NewStore(client *redis.Client, profiles ProfileSource, activity ActivitySource, ttl time.Duration, entityCap int, log logger.Logger) *Store {
	if entityCap <= 0 {
		entityCap = models.DefaultRecentEntityCap
	}
	return &Store{
		client:    client,
		profiles:  profiles,
		activity:  activity,
		ttl:       ttl,
		entityCap: entityCap,
		logger:    log,
	}
}

// Load returns the session snapshot, creating and seeding a fresh one when
// none exists. A session belongs to exactly one user; a mismatched owner is
// treated as missing rather than leaked across users.
func (s *Store) Load(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	raw, err := s.client.Get(ctx, keyPrefix+sessionID).Result()
	if err == redis.Nil {
		return s.seed(ctx, sessionID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrLoadFailed, sessionID, err)
	}

	var sess models.ConversationSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrLoadFailed, sessionID, err)
	}
	if sess.UserID != userID {
		s.logger.Warn("session owner mismatch, reseeding",
			map[string]interface{}{"session_id": sessionID})
		return s.seed(ctx, sessionID, userID)
	}
	return &sess, nil
}

// Save snapshots the whole session under its key with the configured TTL.
func (s *Store) Save(ctx context.Context, sess *models.ConversationSession) error {
	sess.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrSaveFailed, sess.ID, err)
	}
	if err := s.client.Set(ctx, keyPrefix+sess.ID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrSaveFailed, sess.ID, err)
	}
	return nil
}

// Reset deletes the stored snapshot; the next Load starts a fresh session.
func (s *Store) Reset(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrSaveFailed, sessionID, err)
	}
	return nil
}

// seed builds a new session with preferences and a business snapshot taken
// once, at creation. Profile lookup failures degrade to defaults so a chat
// can start even when the business record is missing.
func (s *Store) seed(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	now := time.Now().UTC()

	sess := &models.ConversationSession{
		ID:     sessionID,
		UserID: userID,
		Status: models.SessionActive,
		Context: models.ConversationContext{
			Recent:      models.RecentEntities{Cap: s.entityCap},
			Preferences: models.UserPreferences{Currency: "USD", DateFormat: "2006-01-02", Language: "en"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	profile, err := s.profiles.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		sess.Context.Business.Profile = *profile
		sess.Context.Preferences = models.UserPreferences{
			Template:   profile.DefaultTemplate,
			Currency:   profile.Currency,
			DateFormat: profile.DateFormat,
			Language:   profile.Language,
		}
	case errors.Is(err, backend.ErrNotFound):
		s.logger.Debug("no business profile, using preference defaults",
			map[string]interface{}{"user_id": userID})
	default:
		s.logger.WithError(err).Warn("business profile load failed",
			map[string]interface{}{"user_id": userID})
	}

	if activity, err := s.activity.RecentActivity(ctx, userID, 5); err == nil {
		sess.Context.Business.RecentActivity = activity
	} else {
		s.logger.WithError(err).Warn("recent activity load failed",
			map[string]interface{}{"user_id": userID})
	}

	return sess, nil
}
