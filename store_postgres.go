package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/matrimonyai/backend/matching"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// pgStore implements Store on PostgreSQL.
type pgStore struct {
	db *sql.DB
}

func newPGStore(db *sql.DB) *pgStore {
	return &pgStore{db: db}
}

const profileColumns = `id, user_id, full_name, date_of_birth, gender, religion, city, state, country,
	education, occupation, eating_habits, drinking_habits, smoking_habits,
	phone, email, is_verified, photo_file, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (matching.Profile, error) {
	var (
		p                   matching.Profile
		dob                 sql.NullTime
		phone, email, photo sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.FullName, &dob, &p.Gender, &p.Religion, &p.City, &p.State, &p.Country,
		&p.Education, &p.Occupation, &p.EatingHabits, &p.DrinkingHabits, &p.SmokingHabits,
		&phone, &email, &p.Verified, &photo, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if dob.Valid {
		p.DateOfBirth = dob.Time
	}
	p.Phone, p.Email, p.PhotoFile = phone.String, email.String, photo.String
	return p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// textArray binds a list to a NOT NULL TEXT[] column.
func textArray(s []string) any {
	if s == nil {
		s = []string{}
	}
	return pq.Array(s)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// --- Profiles ---

func (s *pgStore) ProfileByUserID(ctx context.Context, userID int) (*matching.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) ProfilesByUserIDs(ctx context.Context, ids []int) (map[int]matching.Profile, error) {
	out := make(map[int]matching.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}

func (s *pgStore) SaveProfile(ctx context.Context, p *matching.Profile) error {
	return saveProfile(ctx, s.db, p)
}

// saveProfile inserts or replaces the profile of p.UserID. The photo is
// managed by SetPhoto and left untouched.
func saveProfile(ctx context.Context, q querier, p *matching.Profile) error {
	return q.QueryRowContext(ctx, `
		INSERT INTO profiles (user_id, full_name, date_of_birth, gender, religion, city, state, country,
			education, occupation, eating_habits, drinking_habits, smoking_habits, phone, email, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			date_of_birth = EXCLUDED.date_of_birth,
			gender = EXCLUDED.gender,
			religion = EXCLUDED.religion,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			country = EXCLUDED.country,
			education = EXCLUDED.education,
			occupation = EXCLUDED.occupation,
			eating_habits = EXCLUDED.eating_habits,
			drinking_habits = EXCLUDED.drinking_habits,
			smoking_habits = EXCLUDED.smoking_habits,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			is_verified = EXCLUDED.is_verified
		RETURNING id, created_at`,
		p.UserID, p.FullName, nullTime(p.DateOfBirth), p.Gender, p.Religion, p.City, p.State, p.Country,
		p.Education, p.Occupation, p.EatingHabits, p.DrinkingHabits, p.SmokingHabits,
		nullString(p.Phone), nullString(p.Email), p.Verified,
	).Scan(&p.ID, &p.CreatedAt)
}

func (s *pgStore) SetPhoto(ctx context.Context, userID int, file string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET photo_file = $2 WHERE user_id = $1`, userID, nullString(file))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FindCandidates translates the query into one SELECT. Containment filters
// compare lowercased values.
func (s *pgStore) FindCandidates(ctx context.Context, q matching.CandidateQuery) ([]matching.Profile, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.ExcludeUserIDs) > 0 {
		where = append(where, "user_id <> ALL("+arg(pq.Array(q.ExcludeUserIDs))+")")
	}
	if q.ExcludeGender != "" {
		where = append(where, "lower(gender) <> lower("+arg(q.ExcludeGender)+")")
	}
	if q.VerifiedOnly {
		where = append(where, "is_verified")
	}
	if !q.BornAfter.IsZero() {
		where = append(where, "date_of_birth > "+arg(q.BornAfter))
	}
	if !q.BornBefore.IsZero() {
		where = append(where, "date_of_birth <= "+arg(q.BornBefore))
	}
	if len(q.Religions) > 0 {
		where = append(where, "lower(religion) = ANY("+arg(pq.Array(lo.Map(q.Religions, lowerTerm)))+")")
	}
	if len(q.Cities) > 0 {
		where = append(where, "lower(city) = ANY("+arg(pq.Array(lo.Map(q.Cities, lowerTerm)))+")")
	}

	query := `SELECT ` + profileColumns + ` FROM profiles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []matching.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func lowerTerm(s string, _ int) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// --- Preferences ---

func (s *pgStore) PreferencesByUserID(ctx context.Context, userID int) (*matching.PartnerPreferences, error) {
	var p matching.PartnerPreferences
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, age_min, age_max, cities, religions, occupations, personality_traits, updated_at
		FROM partner_preferences WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.AgeMin, &p.AgeMax,
		pq.Array(&p.Cities), pq.Array(&p.Religions), pq.Array(&p.Occupations), pq.Array(&p.PersonalityTraits),
		&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) UpsertPreferences(ctx context.Context, p *matching.PartnerPreferences) error {
	return upsertPreferences(ctx, s.db, p)
}

func upsertPreferences(ctx context.Context, q querier, p *matching.PartnerPreferences) error {
	return q.QueryRowContext(ctx, `
		INSERT INTO partner_preferences (user_id, age_min, age_max, cities, religions, occupations, personality_traits, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			age_min = EXCLUDED.age_min,
			age_max = EXCLUDED.age_max,
			cities = EXCLUDED.cities,
			religions = EXCLUDED.religions,
			occupations = EXCLUDED.occupations,
			personality_traits = EXCLUDED.personality_traits,
			updated_at = NOW()
		RETURNING updated_at`,
		p.UserID, p.AgeMin, p.AgeMax,
		textArray(p.Cities), textArray(p.Religions), textArray(p.Occupations), textArray(p.PersonalityTraits),
	).Scan(&p.UpdatedAt)
}

// --- Matches ---

func (s *pgStore) CreateMatch(ctx context.Context, m *matching.MatchRecord) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO matches (user_id, matched_user_id, compatibility_score, matching_reasons, status, last_interaction)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		m.SeekerID, m.CandidateID, m.Score, textArray(m.Reasons), string(m.Status), m.CreatedAt,
	).Scan(&m.ID)
}

func (s *pgStore) DismissedCandidateIDs(ctx context.Context, seekerID int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT matched_user_id FROM matches
		WHERE user_id = $1 AND status = $2`, seekerID, string(matching.StatusDismissed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *pgStore) MatchesForSeeker(ctx context.Context, seekerID, limit int) ([]matching.MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, matched_user_id, compatibility_score, matching_reasons, status, last_interaction
		FROM matches
		WHERE user_id = $1
		ORDER BY last_interaction DESC, id DESC
		LIMIT $2`, seekerID, sql.NullInt64{Int64: int64(limit), Valid: limit > 0})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []matching.MatchRecord
	for rows.Next() {
		var (
			rec    matching.MatchRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.SeekerID, &rec.CandidateID, &rec.Score,
			pq.Array(&rec.Reasons), &status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = matching.MatchStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *pgStore) SetMatchStatus(ctx context.Context, seekerID, candidateID int, status matching.MatchStatus) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE matches SET status = $3, last_interaction = NOW()
		WHERE user_id = $1 AND matched_user_id = $2`, seekerID, candidateID, string(status))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *pgStore) IsMatched(ctx context.Context, seekerID, candidateID int) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM matches WHERE user_id = $1 AND matched_user_id = $2)`,
		seekerID, candidateID).Scan(&ok)
	return ok, err
}

// --- Conversations ---

func (s *pgStore) ConversationByUserID(ctx context.Context, userID int) (*matching.Conversation, error) {
	var (
		c                   matching.Conversation
		messages, extracted []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, messages, extracted_preferences, last_updated
		FROM ai_conversations WHERE user_id = $1`, userID,
	).Scan(&c.ID, &c.UserID, &messages, &extracted, &c.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(messages, &c.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal(extracted, &c.Extracted); err != nil {
		return nil, fmt.Errorf("decode extracted preferences: %w", err)
	}
	return &c, nil
}

func (s *pgStore) SaveConversation(ctx context.Context, c *matching.Conversation) error {
	messages, err := json.Marshal(lo.Ternary(c.Messages == nil, []matching.Message{}, c.Messages))
	if err != nil {
		return err
	}
	extracted, err := json.Marshal(c.Extracted)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `
		INSERT INTO ai_conversations (user_id, messages, extracted_preferences, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			messages = EXCLUDED.messages,
			extracted_preferences = EXCLUDED.extracted_preferences,
			last_updated = EXCLUDED.last_updated
		RETURNING id`,
		c.UserID, messages, extracted, c.LastUpdated,
	).Scan(&c.ID)
}

// --- Accounts ---

func (s *pgStore) CreateAccount(ctx context.Context, acc *Account, profile *matching.Profile) error {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO users (username, email, phone, password_hash, created_at, last_online)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			acc.Username, nullString(acc.Email), nullString(acc.Phone), acc.PasswordHash,
			acc.CreatedAt, nullTime(acc.LastOnline),
		).Scan(&acc.ID); err != nil {
			return err
		}
		profile.UserID = acc.ID
		return saveProfile(ctx, tx, profile)
	})
	if isUniqueViolation(err) {
		return errUserExists
	}
	return err
}

func (s *pgStore) AccountByUsername(ctx context.Context, username string) (*Account, error) {
	var (
		acc          Account
		email, phone sql.NullString
		lastOnline   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, phone, password_hash, created_at, last_online
		FROM users
		WHERE username = $1 OR email = $1 OR phone = $1
		ORDER BY id
		LIMIT 1`, username,
	).Scan(&acc.ID, &acc.Username, &email, &phone, &acc.PasswordHash, &acc.CreatedAt, &lastOnline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	acc.Email, acc.Phone, acc.LastOnline = email.String, phone.String, lastOnline.Time
	return &acc, nil
}

func (s *pgStore) TouchLastOnline(ctx context.Context, userID int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_online = $2 WHERE id = $1`, userID, at)
	return err
}

func (s *pgStore) LastOnline(ctx context.Context, userID int) (time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT last_online FROM users WHERE id = $1`, userID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	return last.Time, err
}

// --- OTP ---

func (s *pgStore) CreateOTP(ctx context.Context, rec *OTPRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO otp_verifications (id, destination, channel, otp, purpose, expires_at, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Destination, rec.Channel, rec.Code, rec.Purpose, rec.ExpiresAt, rec.Attempts, rec.CreatedAt)
	return err
}

func (s *pgStore) LiveOTPs(ctx context.Context, destination string, now time.Time) ([]OTPRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, destination, channel, otp, purpose, expires_at, attempts, created_at
		FROM otp_verifications
		WHERE destination = $1 AND NOT verified AND expires_at > $2
		ORDER BY created_at DESC`, destination, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OTPRecord
	for rows.Next() {
		var rec OTPRecord
		if err := rows.Scan(&rec.ID, &rec.Destination, &rec.Channel, &rec.Code, &rec.Purpose,
			&rec.ExpiresAt, &rec.Attempts, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *pgStore) IncrementOTPAttempts(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE otp_verifications SET attempts = attempts + 1 WHERE id = $1`, id)
	return err
}

func (s *pgStore) MarkOTPVerified(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE otp_verifications SET verified = TRUE, verified_at = $2 WHERE id = $1`, id, at)
	return err
}

func (s *pgStore) HasVerifiedOTP(ctx context.Context, destination string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM otp_verifications WHERE destination = $1 AND verified)`,
		destination).Scan(&ok)
	return ok, err
}

// --- Activity ---

func (s *pgStore) RecordActivity(ctx context.Context, a *Activity) error {
	metadata := a.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	var target sql.NullInt64
	if a.TargetUserID != nil {
		target = sql.NullInt64{Int64: int64(*a.TargetUserID), Valid: true}
	}
	return s.db.QueryRowContext(ctx, `
		INSERT INTO user_activities (user_id, activity_type, target_user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		a.UserID, a.ActivityType, target, []byte(metadata), a.CreatedAt,
	).Scan(&a.ID)
}

var _ Store = (*pgStore)(nil)
