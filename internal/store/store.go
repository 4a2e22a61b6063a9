package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrDuplicateVote is returned when a vote insert hits the
	// (poll_id, participant_id) unique index. The index is the final
	// arbiter of one-vote-per-participant; in-memory checks upstream
	// are only a fast path.
	ErrDuplicateVote = errors.New("participant already voted in this poll")

	ErrPollNotFound = errors.New("poll not found")
)

const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Poll is the durable poll record. StartTime is a millisecond unix
// timestamp; it is never rewritten after creation, recovery included.
type Poll struct {
	ID            int64    `gorm:"primaryKey"`
	Question      string   `gorm:"not null"`
	Options       []string `gorm:"serializer:json;type:jsonb;not null"`
	Duration      int      `gorm:"not null"`
	StartTime     int64    `gorm:"not null"`
	CorrectAnswer string
	Marks         int
	Status        string `gorm:"index;default:active"`
	CreatedAt     time.Time
	Votes         []Vote `gorm:"constraint:OnDelete:CASCADE"`
}

// Vote is immutable once created; rows only ever disappear through
// cascading poll deletion.
type Vote struct {
	ID              int64  `gorm:"primaryKey"`
	PollID          int64  `gorm:"not null;uniqueIndex:idx_votes_poll_participant"`
	ParticipantID   string `gorm:"not null;uniqueIndex:idx_votes_poll_participant"`
	ParticipantName string `gorm:"not null"`
	OptionSelected  string `gorm:"not null"`
	CreatedAt       time.Time
}

// NewPoll is the creation payload for CreatePoll.
type NewPoll struct {
	Question      string
	Options       []string
	Duration      int
	StartTime     int64
	CorrectAnswer string
	Marks         int
}

// PollHistory is one poll with its per-option counts, every declared
// option present (0 when nobody chose it).
type PollHistory struct {
	Poll
	VoteCounts map[string]int
}

// ScoreRow is one row of the scoreboard aggregation: total marks over
// all polls where the participant's vote matched the correct answer.
type ScoreRow struct {
	ParticipantID   string
	ParticipantName string
	Score           int
}

type Store struct {
	db *gorm.DB
}

// New opens the Postgres connection and migrates the schema. A failure
// here is the one fatal startup condition.
func New(dsn string) (*Store, error) {
	const op = "store.New"

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.AutoMigrate(&Poll{}, &Vote{}); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", op, err)
	}

	return &Store{db: db}, nil
}

// CreatePoll inserts a new active poll, force-ending any still-active
// poll in the same transaction so at most one poll is active at a time.
func (s *Store) CreatePoll(ctx context.Context, p NewPoll) (Poll, error) {
	const op = "store.CreatePoll"

	poll := Poll{
		Question:      p.Question,
		Options:       p.Options,
		Duration:      p.Duration,
		StartTime:     p.StartTime,
		CorrectAnswer: p.CorrectAnswer,
		Marks:         p.Marks,
		Status:        StatusActive,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Poll{}).
			Where("status = ?", StatusActive).
			Update("status", StatusEnded).Error; err != nil {
			return err
		}
		return tx.Create(&poll).Error
	})
	if err != nil {
		return Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

// EndPoll flips a poll's status to ended.
func (s *Store) EndPoll(ctx context.Context, id int64) error {
	const op = "store.EndPoll"

	res := s.db.WithContext(ctx).Model(&Poll{}).
		Where("id = ?", id).
		Update("status", StatusEnded)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrPollNotFound)
	}
	return nil
}

// ActivePoll returns the current active poll, or nil if there is none.
func (s *Store) ActivePoll(ctx context.Context) (*Poll, error) {
	const op = "store.ActivePoll"

	var poll Poll
	err := s.db.WithContext(ctx).
		Where("status = ?", StatusActive).
		Order("created_at DESC").
		First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &poll, nil
}

// InsertVote appends one vote row. A unique-index conflict on
// (poll_id, participant_id) comes back as ErrDuplicateVote.
func (s *Store) InsertVote(ctx context.Context, pollID int64, participantID, name, option string) error {
	const op = "store.InsertVote"

	vote := Vote{
		PollID:          pollID,
		ParticipantID:   participantID,
		ParticipantName: name,
		OptionSelected:  option,
	}
	if err := s.db.WithContext(ctx).Create(&vote).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%s: %w", op, ErrDuplicateVote)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type optionCount struct {
	OptionSelected string
	Count          int
}

// VoteCounts returns per-option counts for one poll, grouped by option.
// Only options that received votes appear; callers default the rest.
func (s *Store) VoteCounts(ctx context.Context, pollID int64) (map[string]int, error) {
	const op = "store.VoteCounts"

	var rows []optionCount
	err := s.db.WithContext(ctx).Model(&Vote{}).
		Select("option_selected, COUNT(*) AS count").
		Where("poll_id = ?", pollID).
		Group("option_selected").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.OptionSelected] = r.Count
	}
	return counts, nil
}

// Voters returns the participant ids that have voted in one poll, used
// to rebuild the in-memory duplicate-vote fast path on recovery.
func (s *Store) Voters(ctx context.Context, pollID int64) ([]string, error) {
	const op = "store.Voters"

	var ids []string
	err := s.db.WithContext(ctx).Model(&Vote{}).
		Where("poll_id = ?", pollID).
		Pluck("participant_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

// ListPolls returns every poll newest-first with its vote breakdown,
// declared options defaulted to 0.
func (s *Store) ListPolls(ctx context.Context) ([]PollHistory, error) {
	const op = "store.ListPolls"

	var polls []Poll
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&polls).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	type pollOptionCount struct {
		PollID         int64
		OptionSelected string
		Count          int
	}
	var rows []pollOptionCount
	err := s.db.WithContext(ctx).Model(&Vote{}).
		Select("poll_id, option_selected, COUNT(*) AS count").
		Group("poll_id, option_selected").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	byPoll := make(map[int64]map[string]int, len(polls))
	for _, r := range rows {
		if byPoll[r.PollID] == nil {
			byPoll[r.PollID] = make(map[string]int)
		}
		byPoll[r.PollID][r.OptionSelected] = r.Count
	}

	history := make([]PollHistory, 0, len(polls))
	for _, p := range polls {
		counts := make(map[string]int, len(p.Options))
		for _, opt := range p.Options {
			counts[opt] = 0
		}
		for opt, n := range byPoll[p.ID] {
			counts[opt] = n
		}
		history = append(history, PollHistory{Poll: p, VoteCounts: counts})
	}
	return history, nil
}

// DeleteAllPolls wipes poll history; votes go with their polls via the
// cascade constraint.
func (s *Store) DeleteAllPolls(ctx context.Context) error {
	const op = "store.DeleteAllPolls"

	if err := s.db.WithContext(ctx).Exec("DELETE FROM polls").Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Scoreboard recomputes every participant's cumulative score from the
// vote/poll join. This query, not the in-memory leaderboard, is the
// source of truth.
func (s *Store) Scoreboard(ctx context.Context) ([]ScoreRow, error) {
	const op = "store.Scoreboard"

	var rows []ScoreRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT v.participant_id, v.participant_name, COALESCE(SUM(p.marks), 0) AS score
		FROM votes v
		JOIN polls p ON v.poll_id = p.id
		WHERE p.correct_answer <> ''
		  AND v.option_selected = p.correct_answer
		GROUP BY v.participant_id, v.participant_name
		ORDER BY score DESC`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}
