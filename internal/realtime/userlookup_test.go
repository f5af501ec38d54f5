package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
)

type countingDirectory struct {
	calls int
	err   error
	user  *domain.User
}

func (d *countingDirectory) Lookup(ctx context.Context, userID string) (*domain.User, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if d.user != nil {
		return d.user, nil
	}
	return &domain.User{ID: userID, DisplayName: "alice"}, nil
}

func TestCachedDirectory_SecondResolveHitsCache(t *testing.T) {
	inner := &countingDirectory{}
	dir := newCachedDirectory(inner, time.Minute)

	u1 := dir.resolve(context.Background(), "u1")
	u2 := dir.resolve(context.Background(), "u1")

	if inner.calls != 1 {
		t.Fatalf("inner called %d times, want 1", inner.calls)
	}
	if u1.DisplayName != "alice" || u2.DisplayName != "alice" {
		t.Fatalf("resolved %q / %q", u1.DisplayName, u2.DisplayName)
	}
}

func TestCachedDirectory_NotFoundCachedAsPlaceholder(t *testing.T) {
	inner := &countingDirectory{err: domain.ErrUserNotFound}
	dir := newCachedDirectory(inner, time.Minute)

	u := dir.resolve(context.Background(), "abcdefgh-rest")
	if u.DisplayName != "member-abcdefgh" {
		t.Fatalf("placeholder = %q", u.DisplayName)
	}

	dir.resolve(context.Background(), "abcdefgh-rest")
	if inner.calls != 1 {
		t.Fatalf("not-found result not cached, inner called %d times", inner.calls)
	}
}

func TestCachedDirectory_TransientErrorNotCached(t *testing.T) {
	inner := &countingDirectory{err: errors.New("dial tcp: connection refused")}
	dir := newCachedDirectory(inner, time.Minute)

	u := dir.resolve(context.Background(), "u1")
	if u.ID != "u1" {
		t.Fatalf("placeholder id = %q", u.ID)
	}

	// recovery: the next resolve retries the inner directory
	inner.err = nil
	u = dir.resolve(context.Background(), "u1")
	if inner.calls != 2 {
		t.Fatalf("transient failure cached, inner called %d times", inner.calls)
	}
	if u.DisplayName != "alice" {
		t.Fatalf("did not heal after transient failure: %q", u.DisplayName)
	}
}
