package location

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/atang/wimf-backend/internal/config"
	"github.com/atang/wimf-backend/internal/domain"
	"github.com/atang/wimf-backend/internal/geo"
)

type fakeLocationRepo struct {
	byUser map[int]*domain.UserLocation
	nextID int

	nearbyRows []domain.NearbyRow
	nearbyErr  error

	lastNearbyRadius float64
	lastNearbyLimit  int

	upsertErr error
}

func newFakeLocationRepo() *fakeLocationRepo {
	return &fakeLocationRepo{byUser: make(map[int]*domain.UserLocation)}
}

func (f *fakeLocationRepo) Upsert(_ context.Context, loc *domain.UserLocation) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.byUser[loc.UserID]; ok {
		loc.ID = existing.ID
		loc.CreatedAt = existing.CreatedAt
	} else {
		f.nextID++
		loc.ID = f.nextID
		loc.CreatedAt = time.Now()
	}
	loc.Enabled = true
	loc.UpdatedAt = time.Now()
	stored := *loc
	f.byUser[loc.UserID] = &stored
	return nil
}

func (f *fakeLocationRepo) Disable(_ context.Context, userID int) error {
	if loc, ok := f.byUser[userID]; ok {
		loc.Enabled = false
	}
	return nil
}

func (f *fakeLocationRepo) FindEnabled(_ context.Context, userID int) (*domain.UserLocation, error) {
	loc, ok := f.byUser[userID]
	if !ok || !loc.Enabled {
		return nil, domain.ErrLocationNotFound
	}
	copied := *loc
	return &copied, nil
}

func (f *fakeLocationRepo) Nearby(_ context.Context, _, _, radiusKm float64, limit int) ([]domain.NearbyRow, error) {
	f.lastNearbyRadius = radiusKm
	f.lastNearbyLimit = limit
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}
	return f.nearbyRows, nil
}

func (f *fakeLocationRepo) Stats(_ context.Context) (*domain.LocationStats, error) {
	return &domain.LocationStats{BySource: map[string]int{}}, nil
}

type fakeUserRepo struct {
	users map[int]*domain.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

type fakePresenceRepo struct {
	seen map[int]time.Time
	err  error
}

func (f *fakePresenceRepo) Touch(_ context.Context, _ int) error { return nil }

func (f *fakePresenceRepo) LastSeen(_ context.Context, _ []int) (map[int]time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.seen, nil
}

func testConfig() config.LocationConfig {
	return config.LocationConfig{
		MaxRadiusKm:          50,
		DefaultRadiusKm:      5,
		NearbyLimit:          50,
		VirtualEnabled:       true,
		MapProvider:          "openstreetmap",
		HighAccuracyMeters:   50,
		MediumAccuracyMeters: 500,
	}
}

func newTestUseCase(repo *fakeLocationRepo, users *fakeUserRepo, presence *fakePresenceRepo, cfg config.LocationConfig) *LocationUseCase {
	if users == nil {
		users = &fakeUserRepo{users: map[int]*domain.User{}}
	}
	if presence == nil {
		presence = &fakePresenceRepo{}
	}
	jitterer := geo.NewJittererWithSource(rand.NewSource(1))
	return NewLocationUseCase(repo, users, presence, nil, jitterer, cfg)
}

func strptr(s string) *string { return &s }

func f64ptr(f float64) *float64 { return &f }

func TestShareLocationRejectsInvalidCoordinates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		lat, lng float64
		wantErr  error
	}{
		{"latitude too high", 91, 0, domain.ErrInvalidCoordinates},
		{"latitude too low", -91, 10, domain.ErrInvalidCoordinates},
		{"longitude too low", 10, -181, domain.ErrInvalidCoordinates},
		{"longitude too high", 10, 181, domain.ErrInvalidCoordinates},
		{"zero zero", 0, 0, domain.ErrDegenerateCoordinates},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			repo := newFakeLocationRepo()
			uc := newTestUseCase(repo, nil, nil, testConfig())

			_, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
				Latitude: c.lat, Longitude: c.lng,
			})
			if !errors.Is(err, c.wantErr) {
				t.Fatalf("got error %v, want %v", err, c.wantErr)
			}
			if len(repo.byUser) != 0 {
				t.Fatal("validation failure must not write anything")
			}
		})
	}
}

func TestShareLocationAcceptsValidCoordinates(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	uc := newTestUseCase(repo, nil, nil, testConfig())

	res, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
		Latitude: 39.9, Longitude: 116.4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LocationType != domain.LocationTypeReal {
		t.Fatalf("location type: got %q, want %q", res.LocationType, domain.LocationTypeReal)
	}
	if res.LocationSource != domain.LocationSourceUnknown {
		t.Fatalf("default source: got %q, want %q", res.LocationSource, domain.LocationSourceUnknown)
	}
}

func TestShareLocationAppliesNoiseToRealLocations(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	uc := newTestUseCase(repo, nil, nil, testConfig())

	lat, lng := 39.9042, 116.4074
	res, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
		Latitude: lat, Longitude: lng, LocationSource: domain.LocationSourceGPS,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.byUser[1]
	if math.Abs(stored.Latitude-lat) > geo.MaxJitterDegrees {
		t.Fatalf("stored latitude %v further than jitter bound from %v", stored.Latitude, lat)
	}
	if math.Abs(stored.Longitude-lng) > geo.MaxJitterDegrees {
		t.Fatalf("stored longitude %v further than jitter bound from %v", stored.Longitude, lng)
	}
	// The response must echo the stored values, not the raw reading.
	if res.Latitude != stored.Latitude || res.Longitude != stored.Longitude {
		t.Fatal("response coordinates differ from stored coordinates")
	}
	if !stored.Enabled {
		t.Fatal("share must set enabled=true")
	}
}

func TestShareLocationNeverStoresOutOfRangeCoordinates(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	uc := newTestUseCase(repo, nil, nil, testConfig())

	// Noise on a share at the pole or the date line must not persist a
	// coordinate outside the valid ranges.
	edges := []struct {
		lat, lng float64
	}{
		{89.9999, 10},
		{-89.9999, 10},
		{10, 179.9999},
		{10, -179.9999},
	}
	for i := 0; i < 1000; i++ {
		edge := edges[i%len(edges)]
		_, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
			Latitude: edge.lat, Longitude: edge.lng, LocationSource: domain.LocationSourceGPS,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stored := repo.byUser[1]
		if stored.Latitude < -90 || stored.Latitude > 90 {
			t.Fatalf("stored latitude %v out of range for share at (%v, %v)", stored.Latitude, edge.lat, edge.lng)
		}
		if stored.Longitude < -180 || stored.Longitude > 180 {
			t.Fatalf("stored longitude %v out of range for share at (%v, %v)", stored.Longitude, edge.lat, edge.lng)
		}
	}
}

func TestShareLocationKeepsAccuracyForMeasuredSources(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	uc := newTestUseCase(repo, nil, nil, testConfig())

	_, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
		Latitude: 39.9, Longitude: 116.4,
		LocationSource:   domain.LocationSourceGPS,
		LocationAccuracy: f64ptr(25),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.byUser[1].LocationAccuracy == nil || *repo.byUser[1].LocationAccuracy != 25 {
		t.Fatal("gps accuracy should be kept")
	}

	_, err = uc.ShareLocation(context.Background(), 2, &ShareLocationRequest{
		Latitude: 39.9, Longitude: 116.4,
		LocationAccuracy: f64ptr(25),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.byUser[2].LocationAccuracy != nil {
		t.Fatal("accuracy for unknown source should be dropped")
	}
}

func TestShareLocationRejectsUnknownSource(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	uc := newTestUseCase(repo, nil, nil, testConfig())

	_, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
		Latitude: 39.9, Longitude: 116.4, LocationSource: "carrier-pigeon",
	})
	if !errors.Is(err, domain.ErrInvalidSource) {
		t.Fatalf("got error %v, want ErrInvalidSource", err)
	}
}

func TestShareVirtualLocation(t *testing.T) {
	t.Parallel()

	t.Run("missing address fails", func(t *testing.T) {
		t.Parallel()
		repo := newFakeLocationRepo()
		uc := newTestUseCase(repo, nil, nil, testConfig())

		_, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
			Latitude: 39.9, Longitude: 116.4, IsVirtual: true,
		})
		if !errors.Is(err, domain.ErrMissingAddress) {
			t.Fatalf("got error %v, want ErrMissingAddress", err)
		}
	})

	t.Run("blank address fails", func(t *testing.T) {
		t.Parallel()
		repo := newFakeLocationRepo()
		uc := newTestUseCase(repo, nil, nil, testConfig())

		_, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
			Latitude: 39.9, Longitude: 116.4, IsVirtual: true, VirtualAddress: strptr("   "),
		})
		if !errors.Is(err, domain.ErrMissingAddress) {
			t.Fatalf("got error %v, want ErrMissingAddress", err)
		}
	})

	t.Run("feature flag off fails", func(t *testing.T) {
		t.Parallel()
		repo := newFakeLocationRepo()
		cfg := testConfig()
		cfg.VirtualEnabled = false
		uc := newTestUseCase(repo, nil, nil, cfg)

		_, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
			Latitude: 39.9, Longitude: 116.4, IsVirtual: true, VirtualAddress: strptr("Tiananmen Square"),
		})
		if !errors.Is(err, domain.ErrFeatureDisabled) {
			t.Fatalf("got error %v, want ErrFeatureDisabled", err)
		}
	})

	t.Run("valid virtual share is never noised", func(t *testing.T) {
		t.Parallel()
		repo := newFakeLocationRepo()
		uc := newTestUseCase(repo, nil, nil, testConfig())

		res, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
			Latitude: 39.9, Longitude: 116.4, IsVirtual: true, VirtualAddress: strptr("Tiananmen Square"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.LocationType != domain.LocationTypeVirtual {
			t.Fatalf("location type: got %q, want virtual", res.LocationType)
		}
		if res.LocationSource != domain.LocationSourceVirtual {
			t.Fatalf("location source: got %q, want virtual", res.LocationSource)
		}
		if res.LocationAccuracy != nil {
			t.Fatal("virtual location must not carry accuracy")
		}
		stored := repo.byUser[1]
		if stored.Latitude != 39.9 || stored.Longitude != 116.4 {
			t.Fatalf("virtual coordinates were perturbed: (%v, %v)", stored.Latitude, stored.Longitude)
		}
	})
}

func TestShareLocationOverwritesPreviousMode(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	uc := newTestUseCase(repo, nil, nil, testConfig())

	if _, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
		Latitude: 39.9, Longitude: 116.4, IsVirtual: true, VirtualAddress: strptr("Somewhere"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := uc.ShareLocation(context.Background(), 1, &ShareLocationRequest{
		Latitude: 31.2, Longitude: 121.5, LocationSource: domain.LocationSourceGPS,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.byUser[1]
	if stored.IsVirtual || stored.LocationType != domain.LocationTypeReal {
		t.Fatal("switching virtual -> real did not overwrite the mode")
	}
	if len(repo.byUser) != 1 {
		t.Fatal("upsert must keep one row per user")
	}
}

func TestFindNearbyClampsRadius(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	uc := newTestUseCase(repo, nil, nil, testConfig())
	user := &domain.User{ID: 1, Username: "alice"}

	if _, err := uc.FindNearby(context.Background(), user, 39.9, 116.4, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastNearbyRadius != 50 {
		t.Fatalf("requested 100km: repo queried with %v, want 50 (ceiling)", repo.lastNearbyRadius)
	}

	if _, err := uc.FindNearby(context.Background(), user, 39.9, 116.4, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastNearbyRadius != 5 {
		t.Fatalf("requested 0km: repo queried with %v, want 5 (default)", repo.lastNearbyRadius)
	}
	if repo.lastNearbyLimit != 50 {
		t.Fatalf("repo queried with limit %v, want 50", repo.lastNearbyLimit)
	}
}

func TestFindNearbyRejectsOutOfRangeCoordinates(t *testing.T) {
	t.Parallel()

	uc := newTestUseCase(newFakeLocationRepo(), nil, nil, testConfig())
	user := &domain.User{ID: 1, Username: "alice"}

	if _, err := uc.FindNearby(context.Background(), user, 91, 0, 5); !errors.Is(err, domain.ErrInvalidCoordinates) {
		t.Fatalf("got error %v, want ErrInvalidCoordinates", err)
	}
}

func TestFindNearbyPrependsOwnLocation(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	// Caller's own location exists but the main query's limit crowded it out.
	repo.byUser[1] = &domain.UserLocation{
		UserID: 1, Latitude: 39.95, Longitude: 116.45, Enabled: true,
		LocationType: domain.LocationTypeReal, LocationSource: domain.LocationSourceGPS,
	}
	repo.nearbyRows = []domain.NearbyRow{
		{
			Location:   domain.UserLocation{UserID: 2, LocationType: domain.LocationTypeReal, LocationSource: domain.LocationSourceGPS},
			User:       domain.User{ID: 2, Username: "bob"},
			DistanceKm: 0.4,
		},
	}

	uc := newTestUseCase(repo, nil, nil, testConfig())
	user := &domain.User{ID: 1, Username: "alice"}

	res, err := uc.FindNearby(context.Background(), user, 39.9, 116.4, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("total: got %d, want 2", res.Total)
	}
	if !res.Users[0].IsCurrentUser {
		t.Fatal("own location must be prepended and flagged as the current user")
	}
	if res.Users[0].Username != "alice" {
		t.Fatalf("first user: got %q, want alice", res.Users[0].Username)
	}
}

func TestFindNearbyOmitsOwnLocationBeyondRadius(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	// Own location ~1068km away, far beyond the 50km ceiling.
	repo.byUser[1] = &domain.UserLocation{
		UserID: 1, Latitude: 31.2304, Longitude: 121.4737, Enabled: true,
		LocationType: domain.LocationTypeReal, LocationSource: domain.LocationSourceGPS,
	}

	uc := newTestUseCase(repo, nil, nil, testConfig())
	user := &domain.User{ID: 1, Username: "alice"}

	res, err := uc.FindNearby(context.Background(), user, 39.9042, 116.4074, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, u := range res.Users {
		if u.IsCurrentUser {
			t.Fatal("own location beyond the effective radius must not be included")
		}
	}
}

func TestFindNearbyDoesNotDuplicateSelf(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	repo.byUser[1] = &domain.UserLocation{
		UserID: 1, Latitude: 39.91, Longitude: 116.41, Enabled: true,
		LocationType: domain.LocationTypeReal, LocationSource: domain.LocationSourceGPS,
	}
	repo.nearbyRows = []domain.NearbyRow{
		{
			Location:   *repo.byUser[1],
			User:       domain.User{ID: 1, Username: "alice"},
			DistanceKm: 1.2,
		},
	}

	uc := newTestUseCase(repo, nil, nil, testConfig())
	user := &domain.User{ID: 1, Username: "alice"}

	res, err := uc.FindNearby(context.Background(), user, 39.9, 116.4, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("self was duplicated: total %d", res.Total)
	}
	if !res.Users[0].IsCurrentUser {
		t.Fatal("self row from the main query must be flagged as the current user")
	}
}

func TestFindNearbyAccuracyStats(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	repo.nearbyRows = []domain.NearbyRow{
		{Location: domain.UserLocation{UserID: 2, LocationSource: domain.LocationSourceGPS}, User: domain.User{ID: 2, Username: "b"}},
		{Location: domain.UserLocation{UserID: 3, LocationSource: domain.LocationSourceGPS}, User: domain.User{ID: 3, Username: "c"}},
		{Location: domain.UserLocation{UserID: 4, LocationSource: domain.LocationSourceVirtual, IsVirtual: true}, User: domain.User{ID: 4, Username: "d"}},
	}

	uc := newTestUseCase(repo, nil, nil, testConfig())
	res, err := uc.FindNearby(context.Background(), &domain.User{ID: 1, Username: "a"}, 39.9, 116.4, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AccuracyStats[domain.LocationSourceGPS] != 2 {
		t.Fatalf("gps count: got %d, want 2", res.AccuracyStats[domain.LocationSourceGPS])
	}
	if res.AccuracyStats[domain.LocationSourceVirtual] != 1 {
		t.Fatalf("virtual count: got %d, want 1", res.AccuracyStats[domain.LocationSourceVirtual])
	}
}

func TestFindNearbySurvivesPresenceFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	repo.nearbyRows = []domain.NearbyRow{
		{Location: domain.UserLocation{UserID: 2, LocationSource: domain.LocationSourceGPS}, User: domain.User{ID: 2, Username: "b"}},
	}
	presence := &fakePresenceRepo{err: errors.New("redis down")}

	uc := newTestUseCase(repo, nil, presence, testConfig())
	res, err := uc.FindNearby(context.Background(), &domain.User{ID: 1, Username: "a"}, 39.9, 116.4, 10)
	if err != nil {
		t.Fatalf("presence failure must not break search: %v", err)
	}
	if res.Users[0].IsOnline {
		t.Fatal("without presence data users degrade to offline")
	}
}

func TestRemoveLocationIdempotent(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	uc := newTestUseCase(repo, nil, nil, testConfig())

	// No prior record: still succeeds.
	if err := uc.RemoveLocation(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo.byUser[2] = &domain.UserLocation{UserID: 2, Enabled: true}
	if err := uc.RemoveLocation(context.Background(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.byUser[2].Enabled {
		t.Fatal("remove must disable the row")
	}
	if err := uc.RemoveLocation(context.Background(), 2); err != nil {
		t.Fatalf("second remove must also succeed: %v", err)
	}
}

func TestDisabledLocationExcludedFromStateAndReactivated(t *testing.T) {
	t.Parallel()

	repo := newFakeLocationRepo()
	users := &fakeUserRepo{users: map[int]*domain.User{
		1: {ID: 1, Username: "alice"},
	}}
	uc := newTestUseCase(repo, users, nil, testConfig())
	ctx := context.Background()

	if _, err := uc.ShareLocation(ctx, 1, &ShareLocationRequest{Latitude: 39.9, Longitude: 116.4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := uc.RemoveLocation(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err := uc.GetCurrentState(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.CurrentUser.Location != nil {
		t.Fatal("disabled location must not show up as current location")
	}

	// Sharing again reactivates from the disabled state.
	if _, err := uc.ShareLocation(ctx, 1, &ShareLocationRequest{Latitude: 39.9, Longitude: 116.4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state, err = uc.GetCurrentState(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.CurrentUser.Location == nil {
		t.Fatal("re-shared location must be visible again")
	}
}

func TestGetCurrentStateEchoesFeatureConfig(t *testing.T) {
	t.Parallel()

	users := &fakeUserRepo{users: map[int]*domain.User{
		1: {ID: 1, Username: "alice"},
	}}
	cfg := testConfig()
	cfg.VirtualEnabled = false
	cfg.MapProvider = "amap"
	uc := newTestUseCase(newFakeLocationRepo(), users, nil, cfg)

	state, err := uc.GetCurrentState(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Config.VirtualLocationEnabled {
		t.Fatal("config echo: virtual flag should be off")
	}
	if state.Config.MapProvider != "amap" {
		t.Fatalf("config echo: map provider got %q", state.Config.MapProvider)
	}
	if state.Config.MaxSearchDistanceKm != 50 {
		t.Fatalf("config echo: max distance got %v", state.Config.MaxSearchDistanceKm)
	}
}

func TestResolveIPLocationWithoutClient(t *testing.T) {
	t.Parallel()

	uc := newTestUseCase(newFakeLocationRepo(), nil, nil, testConfig())

	_, err := uc.ResolveIPLocation(context.Background(), "8.8.8.8")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("got error %v, want ErrUpstreamUnavailable", err)
	}
}
