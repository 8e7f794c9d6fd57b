package pooldiscover

import (
	"context"
	"errors"
	"testing"

	"github.com/kestrelbalance/p2c/balance"
	"github.com/kestrelbalance/p2c/future"
)

type fakeFactory struct {
	status   balance.Status
	pollErr  error
	makeErr  error
	pending  []*future.Promise[string]
	promises []future.Future[string]
	calls    int
}

func (f *fakeFactory) PollReady(ctx context.Context) (balance.Status, error) {
	if f.pollErr != nil {
		return balance.NotReady, f.pollErr
	}
	return f.status, nil
}

func (f *fakeFactory) Make(ctx context.Context, target string) (future.Future[string], error) {
	f.calls++
	if f.makeErr != nil {
		return nil, f.makeErr
	}
	p, fut := future.New[string]()
	f.pending = append(f.pending, p)
	f.promises = append(f.promises, fut)
	return fut, nil
}

func (f *fakeFactory) resolveLatest(v string) {
	f.pending[len(f.pending)-1].Resolve(v)
}

func TestStartsMakeWhenStarved(t *testing.T) {
	factory := &fakeFactory{status: balance.Ready}
	d := New[string, string](factory, "target")

	_, status, err := d.Poll(context.Background())
	if err != nil || status != balance.NotReady {
		t.Fatalf("expected NotReady while make pending, got %v, %v", status, err)
	}
	if factory.calls != 1 {
		t.Fatalf("expected 1 make call, got %d", factory.calls)
	}
	if !d.Making() {
		t.Fatal("expected making=true")
	}
}

func TestMakeCompletionInsertsAndIncrementsServices(t *testing.T) {
	factory := &fakeFactory{status: balance.Ready}
	d := New[string, string](factory, "target")

	_, _, _ = d.Poll(context.Background())
	factory.resolveLatest("svc-1")

	delta, status, err := d.Poll(context.Background())
	if err != nil || status != balance.Ready {
		t.Fatalf("expected Ready, got %v, %v", status, err)
	}
	if delta.Kind != balance.Insert || delta.Key != 1 || delta.Endpoint != "svc-1" {
		t.Fatalf("unexpected delta: %+v", delta)
	}
	if d.Services() != 1 {
		t.Fatalf("expected services=1, got %d", d.Services())
	}
	if d.Making() {
		t.Fatal("expected making cleared")
	}
}

func TestHighLevelStartsSecondMakeWhenFactoryReady(t *testing.T) {
	factory := &fakeFactory{status: balance.Ready}
	d := New[string, string](factory, "target")

	_, _, _ = d.Poll(context.Background())
	factory.resolveLatest("svc-1")
	_, _, _ = d.Poll(context.Background())

	d.SetLevel(High)
	_, status, err := d.Poll(context.Background())
	if err != nil || status != balance.NotReady {
		t.Fatalf("expected NotReady (second make pending), got %v, %v", status, err)
	}
	if factory.calls != 2 {
		t.Fatalf("expected 2 make calls under High, got %d", factory.calls)
	}

	factory.resolveLatest("svc-2")
	delta, status, err := d.Poll(context.Background())
	if err != nil || status != balance.Ready {
		t.Fatalf("expected Ready, got %v, %v", status, err)
	}
	if delta.Key != 2 || d.Services() != 2 {
		t.Fatalf("expected services=2, key=2, got services=%d key=%d", d.Services(), delta.Key)
	}
}

// TestS6_HighLevelScalesUpToTwoServices covers the discovery side of the
// scale-up scenario: the level is set to High directly rather than reached
// through NotReady samples, which is the pool package's EWMA logic.
func TestS6_HighLevelScalesUpToTwoServices(t *testing.T) {
	factory := &fakeFactory{status: balance.Ready}
	d := New[string, string](factory, "target")

	_, _, _ = d.Poll(context.Background())
	factory.resolveLatest("svc-1")
	_, _, _ = d.Poll(context.Background())

	if d.Services() != 1 {
		t.Fatalf("expected 1 service after first make, got %d", d.Services())
	}

	d.SetLevel(High)
	_, status, err := d.Poll(context.Background())
	if err != nil || status != balance.NotReady {
		t.Fatalf("expected NotReady while second make pending, got %v, %v", status, err)
	}

	factory.resolveLatest("svc-2")
	_, status, err = d.Poll(context.Background())
	if err != nil || status != balance.Ready {
		t.Fatalf("expected Ready, got %v, %v", status, err)
	}
	if d.Services() != 2 {
		t.Fatalf("expected services=2 after second make completes, got %d", d.Services())
	}
}

func TestLowLevelRemovesLatestWhenMoreThanOneService(t *testing.T) {
	factory := &fakeFactory{status: balance.Ready}
	d := New[string, string](factory, "target")

	_, _, _ = d.Poll(context.Background())
	factory.resolveLatest("svc-1")
	_, _, _ = d.Poll(context.Background())

	d.SetLevel(High)
	_, _, _ = d.Poll(context.Background())
	factory.resolveLatest("svc-2")
	_, _, _ = d.Poll(context.Background())

	d.SetLevel(Low)
	delta, status, err := d.Poll(context.Background())
	if err != nil || status != balance.Ready {
		t.Fatalf("expected Ready, got %v, %v", status, err)
	}
	if delta.Kind != balance.Remove || delta.Key != 2 {
		t.Fatalf("expected Remove(2), got %+v", delta)
	}
	if d.Services() != 1 {
		t.Fatalf("expected services=1 after removal, got %d", d.Services())
	}
}

func TestLowLevelDoesNotRemoveLastService(t *testing.T) {
	factory := &fakeFactory{status: balance.Ready}
	d := New[string, string](factory, "target")

	_, _, _ = d.Poll(context.Background())
	factory.resolveLatest("svc-1")
	_, _, _ = d.Poll(context.Background())

	d.SetLevel(Low)
	_, status, err := d.Poll(context.Background())
	if err != nil || status != balance.NotReady {
		t.Fatalf("expected NotReady (only 1 service, never drop to 0), got %v, %v", status, err)
	}
	if d.Services() != 1 {
		t.Fatalf("expected services unchanged at 1, got %d", d.Services())
	}
}

func TestMakeFailureSurfacesError(t *testing.T) {
	wantErr := errors.New("construction failed")
	factory := &fakeFactory{status: balance.Ready}
	d := New[string, string](factory, "target")

	_, _, _ = d.Poll(context.Background())
	factory.pending[0].Reject(wantErr)

	_, status, err := d.Poll(context.Background())
	if status != balance.NotReady {
		t.Fatalf("expected NotReady, got %v", status)
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped %v, got %v", wantErr, err)
	}
	if d.Making() {
		t.Fatal("expected making cleared after failure")
	}
}

func TestFactoryMakeCallErrorSurfacesAsErrBalance(t *testing.T) {
	wantErr := errors.New("factory exhausted")
	factory := &fakeFactory{status: balance.Ready, makeErr: wantErr}
	d := New[string, string](factory, "target")

	_, status, err := d.Poll(context.Background())
	if status != balance.NotReady {
		t.Fatalf("expected NotReady, got %v", status)
	}
	var balErr *balance.ErrBalance
	if !errors.As(err, &balErr) {
		t.Fatalf("expected *balance.ErrBalance, got %v", err)
	}
}
