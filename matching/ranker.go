package matching

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultOverFetch    = 2
	DefaultStoreTimeout = 5 * time.Second
)

// Candidate is a scored, not yet persisted, pairing.
type Candidate struct {
	Profile Profile
	Score   Score
}

// Rank scores every profile in pool against seeker, sorts by descending score
// (stable, pool order kept on ties) and keeps the first limit entries. The
// seeker and repeated candidates are skipped.
func Rank(seeker Profile, pool []Profile, limit int, now time.Time) []Candidate {
	seen := map[int]struct{}{seeker.UserID: {}}
	scored := make([]Candidate, 0, len(pool))
	for _, p := range pool {
		if _, dup := seen[p.UserID]; dup {
			continue
		}
		seen[p.UserID] = struct{}{}
		scored = append(scored, Candidate{Profile: p, Score: Compatibility(seeker, p, now)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score.Total > scored[j].Score.Total
	})

	if limit >= 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// BuildCandidateQuery derives the candidate filters for seeker. Gender,
// verification and exclusions always apply; the age, religion and city
// filters only when preferences exist.
func BuildCandidateQuery(seeker Profile, prefs *PartnerPreferences, exclude []int, limit, overFetch int, now time.Time) CandidateQuery {
	q := CandidateQuery{
		ExcludeUserIDs: lo.Uniq(append([]int{seeker.UserID}, exclude...)),
		ExcludeGender:  seeker.Gender,
		VerifiedOnly:   true,
		Limit:          limit * overFetch,
	}
	if prefs != nil {
		q.BornAfter, q.BornBefore = BirthDateBounds(prefs.AgeMin, prefs.AgeMax, now)
		q.Religions = cloneStrings(prefs.Religions)
		q.Cities = cloneStrings(prefs.Cities)
	}
	return q
}

// Ranking is the outcome of FindMatches. WriteErr is set when some match
// records could not be persisted; Matches is complete regardless.
type Ranking struct {
	Matches  []Match
	WriteErr *PartialWriteError
}

// Option configures a Service.
type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithOverFetch sets how many candidates per requested match are fetched before scoring.
func WithOverFetch(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.overFetch = n
		}
	}
}

// WithStoreTimeout bounds every individual store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// WithMaxLimit rejects requests above n. Zero disables the cap.
func WithMaxLimit(n int) Option { return func(s *Service) { s.maxLimit = n } }

// Service ranks candidates for a seeker against the stores.
type Service struct {
	profiles  ProfileStore
	prefs     PreferenceStore
	matches   MatchStore
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
	overFetch int
	maxLimit  int
	timeout   time.Duration
}

func NewService(profiles ProfileStore, prefs PreferenceStore, matches MatchStore, opts ...Option) *Service {
	s := &Service{
		profiles:  profiles,
		prefs:     prefs,
		matches:   matches,
		logger:    zap.NewNop(),
		now:       time.Now,
		overFetch: DefaultOverFetch,
		timeout:   DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindMatches returns the top limit matches for seekerID and persists them.
func (s *Service) FindMatches(ctx context.Context, seekerID, limit int) (*Ranking, error) {
	if seekerID <= 0 {
		return nil, invalidInput("seeker id is required")
	}
	if limit <= 0 {
		return nil, invalidInput("limit must be a positive integer, got %d", limit)
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		return nil, invalidInput("limit must not exceed %d, got %d", s.maxLimit, limit)
	}

	var (
		seeker *Profile
		prefs  *PartnerPreferences
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.call(gctx, "fetch seeker profile", func(ctx context.Context) (err error) {
			seeker, err = s.profiles.ProfileByUserID(ctx, seekerID)
			return err
		})
	})
	g.Go(func() error {
		return s.call(gctx, "fetch preferences", func(ctx context.Context) (err error) {
			prefs, err = s.prefs.PreferencesByUserID(ctx, seekerID)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if seeker == nil {
		return nil, ErrMissingProfile
	}

	var dismissed []int
	if err := s.call(ctx, "fetch dismissed candidates", func(ctx context.Context) (err error) {
		dismissed, err = s.matches.DismissedCandidateIDs(ctx, seekerID)
		return err
	}); err != nil {
		return nil, err
	}

	now := s.now()
	q := BuildCandidateQuery(*seeker, prefs, dismissed, limit, s.overFetch, now)

	var pool []Profile
	if err := s.call(ctx, "query candidates", func(ctx context.Context) (err error) {
		pool, err = s.profiles.FindCandidates(ctx, q)
		return err
	}); err != nil {
		return nil, err
	}

	top := Rank(*seeker, pool, limit, now)
	s.logger.Debug("ranked candidates",
		zap.Int("seeker_id", seekerID),
		zap.Int("pool", len(pool)),
		zap.Int("kept", len(top)),
	)

	ranking := &Ranking{
		Matches: lo.Map(top, func(c Candidate, _ int) Match {
			return NewMatch(c.Profile, c.Score, now)
		}),
	}
	ranking.WriteErr = s.persist(ctx, seekerID, top, now)
	return ranking, nil
}

// persist writes one record per candidate. A failed write does not undo
// earlier ones.
func (s *Service) persist(ctx context.Context, seekerID int, top []Candidate, now time.Time) *PartialWriteError {
	var pw PartialWriteError
	for _, c := range top {
		rec := MatchRecord{
			SeekerID:    seekerID,
			CandidateID: c.Profile.UserID,
			Score:       c.Score.Total,
			Reasons:     cloneStrings(c.Score.Reasons),
			Status:      StatusSuggested,
			CreatedAt:   now,
		}
		err := s.call(ctx, "create match", func(ctx context.Context) error {
			return s.matches.CreateMatch(ctx, &rec)
		})
		if err != nil {
			s.logger.Warn("match record not persisted",
				zap.Int("seeker_id", seekerID),
				zap.Int("candidate_id", rec.CandidateID),
				zap.Error(err),
			)
			pw.Failures = append(pw.Failures, RecordFailure{CandidateID: rec.CandidateID, Err: err})
			continue
		}
		pw.Written++

		if s.publisher != nil {
			if err := s.publisher.PublishMatchSuggested(ctx, rec); err != nil {
				s.logger.Warn("match event not published",
					zap.Int("seeker_id", seekerID),
					zap.Int("candidate_id", rec.CandidateID),
					zap.Error(err),
				)
			}
		}
	}
	if len(pw.Failures) == 0 {
		return nil
	}
	return &pw
}

// call runs fn under the store timeout and tags failures as ErrStoreUnavailable.
func (s *Service) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return storeError(op, err)
	}
	return nil
}
