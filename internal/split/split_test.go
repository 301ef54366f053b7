package split

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/guildtools/guildbank/internal/ledger"
	"github.com/guildtools/guildbank/internal/storage"
	"github.com/guildtools/guildbank/internal/storage/sqlite"
)

func newTestServices(t *testing.T) (*Service, *ledger.Service, *Registry) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ledgerSvc := ledger.NewService(store)
	registry := NewRegistry()
	return NewService(registry, ledgerSvc), ledgerSvc, registry
}

func registerAll(t *testing.T, svc *ledger.Service, users map[string]string) {
	t.Helper()
	for id, name := range users {
		if err := svc.Register(context.Background(), id, name); err != nil {
			t.Fatalf("Register %s failed: %v", id, err)
		}
	}
}

func TestStartValidation(t *testing.T) {
	svc, _, _ := newTestServices(t)

	if _, err := svc.Start("msg", "owner", 0, "http://evidence"); err == nil {
		t.Error("Expected zero pool to be rejected")
	}
	if _, err := svc.Start("msg", "owner", 100, ""); err == nil {
		t.Error("Expected missing evidence to be rejected")
	}
	if _, err := svc.Start("msg", "owner", 100, "http://evidence"); err != nil {
		t.Errorf("Start failed: %v", err)
	}
}

func TestJoinIdempotent(t *testing.T) {
	svc, ledgerSvc, _ := newTestServices(t)
	ctx := context.Background()
	registerAll(t, ledgerSvc, map[string]string{"A": "Arthur"})

	if _, err := svc.Start("msg", "owner", 100, "http://evidence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := svc.Join(ctx, "msg", "A"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := svc.Join(ctx, "msg", "A"); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("Expected ErrAlreadyJoined, got %v", err)
	}

	names, err := svc.Roster(ctx, "msg")
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("Roster length: got %d, want 1", len(names))
	}
}

func TestJoinRequiresRegistration(t *testing.T) {
	svc, _, _ := newTestServices(t)

	if _, err := svc.Start("msg", "owner", 100, "http://evidence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := svc.Join(context.Background(), "msg", "stranger"); !errors.Is(err, storage.ErrUnknownUser) {
		t.Errorf("Expected ErrUnknownUser, got %v", err)
	}
}

func TestJoinStaleSession(t *testing.T) {
	svc, _, _ := newTestServices(t)

	if err := svc.Join(context.Background(), "never-existed", "A"); !errors.Is(err, ErrStaleSession) {
		t.Errorf("Expected ErrStaleSession, got %v", err)
	}
}

func TestAddRemoveByName(t *testing.T) {
	svc, ledgerSvc, _ := newTestServices(t)
	ctx := context.Background()
	registerAll(t, ledgerSvc, map[string]string{"A": "Arthur", "B": "Bedivere"})

	if _, err := svc.Start("msg", "owner", 100, "http://evidence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	t.Run("add resolves names case-insensitively", func(t *testing.T) {
		changed, err := svc.AddByName(ctx, "msg", "arthur")
		if err != nil {
			t.Fatalf("AddByName failed: %v", err)
		}
		if !changed {
			t.Error("Expected roster to change")
		}
		names, err := svc.Roster(ctx, "msg")
		if err != nil {
			t.Fatalf("Roster failed: %v", err)
		}
		if len(names) != 1 || names[0] != "Arthur" {
			t.Errorf("Unexpected roster: %v", names)
		}
	})

	t.Run("add of unknown name is a silent no-op", func(t *testing.T) {
		changed, err := svc.AddByName(ctx, "msg", "Mordred")
		if err != nil {
			t.Fatalf("AddByName failed: %v", err)
		}
		if changed {
			t.Error("Unknown name should not change the roster")
		}
	})

	t.Run("duplicate add is a silent no-op", func(t *testing.T) {
		changed, err := svc.AddByName(ctx, "msg", "Arthur")
		if err != nil {
			t.Fatalf("AddByName failed: %v", err)
		}
		if changed {
			t.Error("Duplicate add should not change the roster")
		}
	})

	t.Run("remove preserves join order", func(t *testing.T) {
		if _, err := svc.AddByName(ctx, "msg", "Bedivere"); err != nil {
			t.Fatalf("AddByName failed: %v", err)
		}
		if _, err := svc.RemoveByName(ctx, "msg", "ARTHUR"); err != nil {
			t.Fatalf("RemoveByName failed: %v", err)
		}
		names, err := svc.Roster(ctx, "msg")
		if err != nil {
			t.Fatalf("Roster failed: %v", err)
		}
		if len(names) != 1 || names[0] != "Bedivere" {
			t.Errorf("Unexpected roster after remove: %v", names)
		}
	})
}

func TestFinalizeEvenSplit(t *testing.T) {
	svc, ledgerSvc, registry := newTestServices(t)
	ctx := context.Background()
	registerAll(t, ledgerSvc, map[string]string{"A": "Arthur", "B": "Bedivere"})

	if _, err := svc.Start("msg", "owner", 100, "http://evidence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, id := range []string{"A", "B"} {
		if err := svc.Join(ctx, "msg", id); err != nil {
			t.Fatalf("Join %s failed: %v", id, err)
		}
	}

	result, err := svc.Finalize(ctx, "msg", "owner", "dungeon")
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if result.Share != 50 {
		t.Errorf("Share: got %d, want 50", result.Share)
	}
	if len(result.Payouts) != 2 {
		t.Fatalf("Payouts: got %d, want 2", len(result.Payouts))
	}
	for _, id := range []string{"A", "B"} {
		user, err := ledgerSvc.Profile(ctx, id)
		if err != nil {
			t.Fatalf("Profile %s failed: %v", id, err)
		}
		if user.Balance != 50 {
			t.Errorf("Balance of %s: got %d, want 50", id, user.Balance)
		}
		entries, err := ledgerSvc.RecentHistory(ctx, id, 0)
		if err != nil {
			t.Fatalf("RecentHistory failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Reason != "dungeon" || entries[0].Amount != 50 {
			t.Errorf("Unexpected history for %s: %+v", id, entries)
		}
	}

	t.Run("session is gone after finalize", func(t *testing.T) {
		if registry.Len() != 0 {
			t.Errorf("Registry still holds %d sessions", registry.Len())
		}
		if _, err := svc.Finalize(ctx, "msg", "owner", "again"); !errors.Is(err, ErrStaleSession) {
			t.Errorf("Expected ErrStaleSession on re-finalize, got %v", err)
		}
	})
}

func TestFinalizeRemainderIsLost(t *testing.T) {
	svc, ledgerSvc, _ := newTestServices(t)
	ctx := context.Background()
	registerAll(t, ledgerSvc, map[string]string{"A": "Arthur", "B": "Bedivere", "C": "Caradoc"})

	if _, err := svc.Start("msg", "owner", 100, "http://evidence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, id := range []string{"A", "B", "C"} {
		if err := svc.Join(ctx, "msg", id); err != nil {
			t.Fatalf("Join %s failed: %v", id, err)
		}
	}

	result, err := svc.Finalize(ctx, "msg", "owner", "raid")
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if result.Share != 33 {
		t.Errorf("Share: got %d, want 33", result.Share)
	}

	// 100 / 3 pays 33 each; the single leftover unit is deliberately not
	// distributed. Total credited must be 99, not 100.
	var credited int64
	for _, id := range []string{"A", "B", "C"} {
		user, err := ledgerSvc.Profile(ctx, id)
		if err != nil {
			t.Fatalf("Profile %s failed: %v", id, err)
		}
		credited += user.Balance
	}
	if credited != 99 {
		t.Errorf("Total credited: got %d, want 99 (remainder stays in the pool)", credited)
	}
}

func TestFinalizeGuards(t *testing.T) {
	svc, ledgerSvc, _ := newTestServices(t)
	ctx := context.Background()
	registerAll(t, ledgerSvc, map[string]string{"A": "Arthur"})

	if _, err := svc.Start("msg", "owner", 100, "http://evidence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := svc.Finalize(ctx, "msg", "owner", "x"); !errors.Is(err, ErrEmptyRoster) {
		t.Errorf("Expected ErrEmptyRoster, got %v", err)
	}

	if err := svc.Join(ctx, "msg", "A"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, err := svc.Finalize(ctx, "msg", "imposter", "x"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}

	// Guard failures leave the session open.
	if _, err := svc.Finalize(ctx, "msg", "owner", "x"); err != nil {
		t.Errorf("Finalize after failed attempts should succeed, got %v", err)
	}
}

func TestFinalizeRacingRemove(t *testing.T) {
	svc, ledgerSvc, _ := newTestServices(t)
	ctx := context.Background()
	registerAll(t, ledgerSvc, map[string]string{"A": "Arthur"})

	// The owner's !remove can race their own finalize. Whichever order the
	// session lock picks, finalize must either pay the member or reject the
	// now-empty roster; it must never divide by zero.
	for i := 0; i < 300; i++ {
		key := fmt.Sprintf("msg-%d", i)
		session, err := svc.Start(key, "owner", 100, "http://evidence")
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if err := svc.Join(ctx, key, "A"); err != nil {
			t.Fatalf("Join failed: %v", err)
		}

		start := make(chan struct{})
		var wg sync.WaitGroup
		var finErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			session.remove("A")
		}()
		go func() {
			defer wg.Done()
			<-start
			_, finErr = svc.Finalize(ctx, key, "owner", "raid")
		}()
		close(start)
		wg.Wait()

		if finErr != nil && !errors.Is(finErr, ErrEmptyRoster) {
			t.Fatalf("Unexpected finalize error: %v", finErr)
		}
	}
}

// flakyStore fails balance changes for one member, simulating a storage
// outage mid-payout.
type flakyStore struct {
	storage.Store
	failID string
}

func (s *flakyStore) ApplyDelta(ctx context.Context, id string, delta int64, reason string) (int64, int64, error) {
	if id == s.failID {
		return 0, 0, fmt.Errorf("simulated storage failure")
	}
	return s.Store.ApplyDelta(ctx, id, delta, reason)
}

func TestFinalizePartialCreditFailure(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ledgerSvc := ledger.NewService(&flakyStore{Store: store, failID: "B"})
	registry := NewRegistry()
	svc := NewService(registry, ledgerSvc)
	ctx := context.Background()
	registerAll(t, ledgerSvc, map[string]string{"A": "Arthur", "B": "Bedivere", "C": "Caradoc"})

	if _, err := svc.Start("msg", "owner", 100, "http://evidence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, id := range []string{"A", "B", "C"} {
		if err := svc.Join(ctx, "msg", id); err != nil {
			t.Fatalf("Join %s failed: %v", id, err)
		}
	}

	result, err := svc.Finalize(ctx, "msg", "owner", "raid")
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0] != "B" {
		t.Errorf("Failed list: got %v, want [B]", result.Failed)
	}
	if len(result.Payouts) != 2 {
		t.Fatalf("Payouts: got %d, want 2", len(result.Payouts))
	}

	// The others still got paid.
	for _, id := range []string{"A", "C"} {
		user, err := ledgerSvc.Profile(ctx, id)
		if err != nil {
			t.Fatalf("Profile %s failed: %v", id, err)
		}
		if user.Balance != 33 {
			t.Errorf("Balance of %s: got %d, want 33", id, user.Balance)
		}
	}
	user, err := ledgerSvc.Profile(ctx, "B")
	if err != nil {
		t.Fatalf("Profile B failed: %v", err)
	}
	if user.Balance != 0 {
		t.Errorf("Balance of B: got %d, want 0", user.Balance)
	}

	// The session closed before the credits, so a retry cannot double-pay
	// the members who were already credited.
	if registry.Len() != 0 {
		t.Errorf("Registry still holds %d sessions", registry.Len())
	}
	if _, err := svc.Finalize(ctx, "msg", "owner", "raid"); !errors.Is(err, ErrStaleSession) {
		t.Errorf("Expected ErrStaleSession on retry, got %v", err)
	}
}

func TestRegistryFindByOwner(t *testing.T) {
	svc, _, registry := newTestServices(t)

	if _, err := svc.Start("msg-1", "owner-1", 100, "http://evidence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := svc.Start("msg-2", "owner-2", 200, "http://evidence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	key, session, ok := registry.FindByOwner("owner-2")
	if !ok {
		t.Fatal("Expected to find owner-2's session")
	}
	if key != "msg-2" || session.Total != 200 {
		t.Errorf("Wrong session: key=%s total=%d", key, session.Total)
	}
	if _, _, ok := registry.FindByOwner("nobody"); ok {
		t.Error("Found a session for an unknown owner")
	}

	t.Run("oldest session wins for one owner", func(t *testing.T) {
		if _, err := svc.Start("msg-3", "owner-1", 300, "http://evidence"); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		key, session, ok := registry.FindByOwner("owner-1")
		if !ok {
			t.Fatal("Expected to find owner-1's session")
		}
		if key != "msg-1" || session.Total != 100 {
			t.Errorf("Expected the oldest session: key=%s total=%d", key, session.Total)
		}

		registry.delete("msg-1")
		key, session, ok = registry.FindByOwner("owner-1")
		if !ok {
			t.Fatal("Expected to find owner-1's remaining session")
		}
		if key != "msg-3" || session.Total != 300 {
			t.Errorf("Expected the remaining session: key=%s total=%d", key, session.Total)
		}
	})
}

func TestConcurrentJoins(t *testing.T) {
	svc, ledgerSvc, _ := newTestServices(t)
	ctx := context.Background()

	users := map[string]string{}
	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		id := string(rune('a'+i)) + "-id"
		users[id] = "Member" + string(rune('A'+i))
		ids = append(ids, id)
	}
	registerAll(t, ledgerSvc, users)

	if _, err := svc.Start("msg", "owner", 1000, "http://evidence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan error, len(ids)*2)
	for _, id := range ids {
		// Each member clicks join twice, concurrently.
		for j := 0; j < 2; j++ {
			go func(id string) { done <- svc.Join(ctx, "msg", id) }(id)
		}
	}

	var joined, dup int
	for i := 0; i < len(ids)*2; i++ {
		switch err := <-done; {
		case err == nil:
			joined++
		case errors.Is(err, ErrAlreadyJoined):
			dup++
		default:
			t.Fatalf("Unexpected join error: %v", err)
		}
	}
	if joined != len(ids) || dup != len(ids) {
		t.Errorf("joined=%d dup=%d, want %d each", joined, dup, len(ids))
	}

	names, err := svc.Roster(ctx, "msg")
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	if len(names) != len(ids) {
		t.Errorf("Roster length: got %d, want %d", len(names), len(ids))
	}
}
