package recommendation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/realtime"
	"rewards-controlplane/services/account"
	"rewards-controlplane/services/detection"
	"rewards-controlplane/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeEmployees map[string]*account.Profile

func (f fakeEmployees) GetEmployee(_ context.Context, companyID, employeeID string) (*account.Profile, error) {
	p, ok := f[employeeID]
	if !ok || p.CompanyID != companyID {
		return nil, errutil.NotFound("employee not found", nil)
	}
	return p, nil
}

type fakeCycles map[string]*detection.Cycle

func (f fakeCycles) Get(_ context.Context, companyID, id string) (*detection.View, error) {
	c, ok := f[id]
	if !ok || c.CompanyID != companyID {
		return nil, errutil.NotFound("detection cycle not found", nil)
	}
	return &detection.View{Cycle: c}, nil
}

func setup(t *testing.T) (*Service, realtime.Bus) {
	db := testutil.NewTestDB(t, &Recommendation{})
	bus := realtime.NewMemoryBus()
	employees := fakeEmployees{"e1": {ID: "e1", CompanyID: "c1"}}
	cycles := fakeCycles{
		"done":    {ID: "done", CompanyID: "c1", State: detection.StateCompleted},
		"running": {ID: "running", CompanyID: "c1", State: detection.StatePolicyAlignment},
	}
	return New(db, testutil.Node(t), bus, employees, cycles), bus
}

func next(t *testing.T, events <-chan realtime.Event) realtime.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no realtime event")
		return realtime.Event{}
	}
}

func TestApproveAndAcceptPublishEvents(t *testing.T) {
	svc, bus := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe, err := bus.Subscribe(ctx, Channel("e1"))
	require.NoError(t, err)
	defer unsubscribe()

	cycleID := "done"
	r, err := svc.Approve(ctx, "c1", "boss", ApproveRequest{
		EmployeeID:     "e1",
		CycleID:        &cycleID,
		Recommendation: json.RawMessage(`{"title":"Spa day","estimated_cost":300}`),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, r.Status)

	ev := next(t, events)
	require.Equal(t, realtime.EventInsert, ev.Type)
	require.Equal(t, Table, ev.Table)
	var inserted Recommendation
	require.NoError(t, json.Unmarshal(ev.Record, &inserted))
	require.Equal(t, r.ID, inserted.ID)

	own, err := svc.ForEmployee(ctx, "e1", "")
	require.NoError(t, err)
	require.Len(t, own, 1)

	accepted, err := svc.Accept(ctx, "e1", r.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	ev = next(t, events)
	require.Equal(t, realtime.EventUpdate, ev.Type)

	_, err = svc.Accept(ctx, "e1", r.ID)
	require.True(t, errutil.Is(err, errutil.StatusConflict))
	_, err = svc.Accept(ctx, "someone-else", r.ID)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestApproveValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Approve(ctx, "c1", "boss", ApproveRequest{EmployeeID: "e1", Recommendation: json.RawMessage(`{bad`)})
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = svc.Approve(ctx, "c2", "boss", ApproveRequest{EmployeeID: "e1", Recommendation: json.RawMessage(`{}`)})
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	running := "running"
	_, err = svc.Approve(ctx, "c1", "boss", ApproveRequest{EmployeeID: "e1", CycleID: &running, Recommendation: json.RawMessage(`{}`)})
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	empty := ""
	r, err := svc.Approve(ctx, "c1", "boss", ApproveRequest{EmployeeID: "e1", CycleID: &empty, Recommendation: json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.Nil(t, r.CycleID)
}
