package main

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/matrimonyai/backend/matching"
)

type seedOptions struct {
	Count    int
	Seed     int64
	Truncate bool
	Password string // same password for everyone (easy login)
}

var seedOpts seedOptions

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with deterministic fake members",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := setup()
		if err != nil {
			return err
		}
		if seedOpts.Count < 1 {
			return fmt.Errorf("--count must be at least 1")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		db, err := openDB(ctx, config.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrate(ctx, db); err != nil {
			return err
		}
		return seed(ctx, db, seedOpts, time.Now())
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVar(&seedOpts.Count, "count", 200, "Number of members to create")
	seedCmd.Flags().Int64Var(&seedOpts.Seed, "seed", 42, "RNG seed (deterministic)")
	seedCmd.Flags().BoolVar(&seedOpts.Truncate, "truncate", false, "TRUNCATE member tables before running")
	seedCmd.Flags().StringVar(&seedOpts.Password, "password", "Test@1234", "Password assigned to all members")
}

var (
	seedMaleNames   = []string{"Aarav", "Vivaan", "Aditya", "Arjun", "Rohan", "Karan", "Rahul", "Siddharth", "Nikhil", "Varun", "Pranav", "Harsh"}
	seedFemaleNames = []string{"Ananya", "Diya", "Priya", "Isha", "Kavya", "Meera", "Neha", "Pooja", "Riya", "Sneha", "Tanvi", "Aditi"}
	seedSurnames    = []string{"Sharma", "Patel", "Iyer", "Reddy", "Nair", "Gupta", "Kulkarni", "Joshi", "Singh", "Menon", "Desai", "Chatterjee"}
	seedReligions   = []string{"Hindu", "Hindu", "Hindu", "Muslim", "Christian", "Sikh", "Jain", "Buddhist"}
	seedOccupations = []string{
		"Software Engineer", "Data Scientist", "Doctor", "Nurse", "Teacher", "Professor",
		"Business Owner", "Chartered Accountant", "Product Manager", "Dentist", "Consultant", "Architect",
	}
	seedHabits = map[string][]string{
		"eating":   {"vegetarian", "non-vegetarian", "eggetarian", "vegan"},
		"drinking": {"never", "occasionally", "socially"},
		"smoking":  {"never", "never", "occasionally"},
	}
)

type seedCity struct{ City, State string }

var seedCities = []seedCity{
	{"Mumbai", "Maharashtra"}, {"Pune", "Maharashtra"}, {"Delhi", "Delhi"}, {"Bangalore", "Karnataka"},
	{"Hyderabad", "Telangana"}, {"Chennai", "Tamil Nadu"}, {"Kolkata", "West Bengal"}, {"Ahmedabad", "Gujarat"},
}

func pick[T any](r *rand.Rand, list []T) T {
	return list[r.Intn(len(list))]
}

// seedMember builds the account, profile and preferences of member i. The
// first two members are fixed test users.
func seedMember(r *rand.Rand, i int, now time.Time) (Account, matching.Profile, matching.PartnerPreferences) {
	gender := "male"
	first := pick(r, seedMaleNames)
	if i%2 == 1 {
		gender = "female"
		first = pick(r, seedFemaleNames)
	}
	phone := fmt.Sprintf("98765%05d", 43210+i)
	lastOnline := now.Add(-time.Duration(r.Intn(14*24)) * time.Hour) // within the last 2 weeks
	if i < 2 {
		lastOnline = now
	}

	loc := pick(r, seedCities)
	age := 22 + r.Intn(14)
	dob := time.Date(now.Year()-age, time.Month(1+r.Intn(12)), 1+r.Intn(28), 0, 0, 0, 0, time.UTC)

	acc := Account{Username: phone, Phone: phone, CreatedAt: now, LastOnline: lastOnline}
	profile := matching.Profile{
		FullName:       first + " " + pick(r, seedSurnames),
		DateOfBirth:    dob,
		Gender:         gender,
		Religion:       pick(r, seedReligions),
		City:           loc.City,
		State:          loc.State,
		Country:        "India",
		Education:      pick(r, matching.EducationLevels),
		Occupation:     pick(r, seedOccupations),
		EatingHabits:   pick(r, seedHabits["eating"]),
		DrinkingHabits: pick(r, seedHabits["drinking"]),
		SmokingHabits:  pick(r, seedHabits["smoking"]),
		Phone:          phone,
		Verified:       r.Float64() < 0.9 || i < 2,
		CreatedAt:      now,
	}
	prefs := matching.PartnerPreferences{
		AgeMin:    max(minMemberAge, age-4),
		AgeMax:    age + 4,
		Religions: []string{strings.ToLower(profile.Religion)},
	}
	if r.Intn(2) == 0 {
		prefs.Cities = []string{strings.ToLower(loc.City)}
	}
	return acc, profile, prefs
}

func seed(ctx context.Context, db *sql.DB, opts seedOptions, now time.Time) error {
	r := rand.New(rand.NewSource(opts.Seed))

	pwHash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("bcrypt: %w", err)
	}

	// One big transaction (clear and easy rollback if something breaks constraints)
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if opts.Truncate {
			if _, err := tx.ExecContext(ctx, `
				TRUNCATE TABLE user_activities, otp_verifications, ai_conversations, matches,
					partner_preferences, profiles, users RESTART IDENTITY CASCADE`); err != nil {
				return fmt.Errorf("truncate: %w", err)
			}
			logger.Info("truncated member tables")
		}

		for i := 0; i < opts.Count; i++ {
			acc, profile, prefs := seedMember(r, i, now)

			if err := tx.QueryRowContext(ctx, `
				INSERT INTO users (username, phone, password_hash, created_at, last_online)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (username) DO UPDATE SET
					password_hash = EXCLUDED.password_hash,
					last_online = EXCLUDED.last_online
				RETURNING id`,
				acc.Username, acc.Phone, string(pwHash), acc.CreatedAt, acc.LastOnline,
			).Scan(&acc.ID); err != nil {
				return fmt.Errorf("insert user %d (%s): %w", i, acc.Username, err)
			}

			profile.UserID = acc.ID
			if err := saveProfile(ctx, tx, &profile); err != nil {
				return fmt.Errorf("insert profile of user %d: %w", acc.ID, err)
			}
			prefs.UserID = acc.ID
			if err := upsertPreferences(ctx, tx, &prefs); err != nil {
				return fmt.Errorf("insert preferences of user %d: %w", acc.ID, err)
			}

			// members registered through a verified code
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO otp_verifications (id, destination, channel, otp, purpose, expires_at, verified, verified_at, created_at)
				VALUES ($1, $2, 'phone', $3, 'registration', $4, TRUE, $4, $4)`,
				uuid.NewString(), acc.Phone, fmt.Sprintf("%06d", 100000+r.Intn(900000)), now,
			); err != nil {
				return fmt.Errorf("insert otp of user %d: %w", acc.ID, err)
			}
		}

		logger.Info("seed complete",
			zap.Int("members", opts.Count),
			zap.Int64("seed", opts.Seed),
			zap.String("test_users", "9876543210, 9876543211"),
		)
		return nil
	})
}
