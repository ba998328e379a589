package notification

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go-hrms/internal/features/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store     *memoryStore
	registry  *realtime.Registry
	directory *fakeDirectory
	secondary *recordingChannel
	service   NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemoryStore(),
		registry:  realtime.NewRegistry(zap.NewNop()),
		directory: &fakeDirectory{members: map[string][]string{}},
		secondary: &recordingChannel{},
	}
	f.service = NewNotificationService(f.store, f.registry, f.directory, f.secondary, inlineSubmitter{}, zap.NewNop())
	return f
}

func (f *fixture) connect(t *testing.T, userID, role string) *recordingTransport {
	t.Helper()
	tr := &recordingTransport{}
	require.True(t, f.registry.Register(userID, role, tr))
	return tr
}

func TestNotifyUserEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.connect(t, "emp-1", "employee")

	n, err := f.service.NotifyUser(ctx, "emp-1", Payload{
		Title:    "T",
		Message:  "You clocked in late",
		Type:     NotificationTypeWarning,
		Category: CategoryAttendance,
		Metadata: map[string]any{"action": "late_checkin"},
	})
	require.NoError(t, err)

	stored := f.store.get(t, n.ID)
	assert.Equal(t, "emp-1", stored.RecipientID)
	assert.False(t, stored.IsRead)

	frames := tr.eventFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, n.ID.Hex(), frames[0]["id"])
	assert.Equal(t, "T", frames[0]["title"])
	assert.Equal(t, "warning", frames[0]["type"])
	assert.Equal(t, "attendance", frames[0]["category"])
	assert.Equal(t, false, frames[0]["isRead"])
	assert.Equal(t, map[string]any{"action": "late_checkin"}, frames[0]["metadata"])
	assert.NotEmpty(t, frames[0]["createdAt"])

	calls := f.secondary.dispatched()
	require.Len(t, calls, 1)
	assert.Equal(t, "emp-1", calls[0].UserID)
	assert.Equal(t, n.ID.Hex(), calls[0].Extra["notificationId"])
}

func TestNotifyUserPersistsWhenOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.service.NotifyUser(ctx, "emp-1", Payload{Title: "Payslip", Message: "March payslip is ready"})
	require.NoError(t, err)

	page, err := f.service.ListForUser(ctx, "emp-1", ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, n.ID, page.Items[0].ID)
	assert.Equal(t, "Payslip", page.Items[0].Title)
	assert.Equal(t, NotificationTypeInfo, page.Items[0].Type)
	assert.Empty(t, f.secondary.dispatched(), "info without an important category is not escalated")
}

func TestNotifyUserRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.NotifyUser(ctx, " ", Payload{Title: "t", Message: "m"})
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = f.service.NotifyUser(ctx, "emp-1", Payload{Title: "t"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Equal(t, 0, f.store.count())
}

func TestNotifyUserPropagatesStoreFailure(t *testing.T) {
	f := newFixture(t)
	tr := f.connect(t, "emp-1", "employee")
	f.store.failing = true

	_, err := f.service.NotifyUser(context.Background(), "emp-1", Payload{Title: "t", Message: "m", Type: NotificationTypeError})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, tr.eventFrames(), "nothing is pushed without a durable record")
	assert.Empty(t, f.secondary.dispatched())
}

func TestNotifyUserSurvivesBrokenTransport(t *testing.T) {
	f := newFixture(t)
	tr := f.connect(t, "emp-1", "employee")
	_ = tr.Close()

	n, err := f.service.NotifyUser(context.Background(), "emp-1", Payload{Title: "t", Message: "m"})
	require.NoError(t, err)
	assert.False(t, f.store.get(t, n.ID).IsRead)
	assert.Equal(t, 0, f.registry.Stats().Total)
}

func TestNotifyUserIgnoresSchedulingFailure(t *testing.T) {
	f := newFixture(t)
	f.service = NewNotificationService(f.store, f.registry, f.directory, f.secondary,
		inlineSubmitter{err: errors.New("pool overloaded")}, zap.NewNop())

	_, err := f.service.NotifyUser(context.Background(), "emp-1", Payload{Title: "t", Message: "m", Type: NotificationTypeError})
	require.NoError(t, err)
	assert.Empty(t, f.secondary.dispatched())
}

func TestNotifyRoleFansOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.directory.members["HR"] = []string{"hr-1", "hr-2", "hr-3", "hr-4", "hr-5"}

	live := map[string]*recordingTransport{}
	for _, id := range []string{"hr-1", "hr-2", "hr-3"} {
		live[id] = f.connect(t, id, "HR")
	}
	bystander := f.connect(t, "emp-1", "employee")

	d, err := f.service.NotifyRole(ctx, "HR", Payload{Title: "New leave request", Message: "Pending approval", Category: CategoryLeave})
	require.NoError(t, err)

	assert.Len(t, d.Records, 5)
	assert.Equal(t, 5, f.store.count())
	assert.LessOrEqual(t, d.Pushed, 3)
	assert.Equal(t, 3, d.Pushed)

	for _, tr := range live {
		frames := tr.eventFrames()
		require.Len(t, frames, 1)
		assert.Equal(t, "HR", frames[0]["role"])
		assert.Equal(t, "New leave request", frames[0]["title"])
	}
	assert.Empty(t, bystander.eventFrames())

	recipients := map[string]bool{}
	for _, r := range d.Records {
		recipients[r.RecipientID] = true
	}
	assert.Len(t, recipients, 5)
	assert.Len(t, f.secondary.dispatched(), 5, "leave is escalated for every member")
}

func TestNotifyRoleDirectoryFailure(t *testing.T) {
	f := newFixture(t)
	f.directory.err = errors.New("directory offline")

	_, err := f.service.NotifyRole(context.Background(), "HR", Payload{Title: "t", Message: "m"})
	assert.Error(t, err)
	assert.Equal(t, 0, f.store.count())
}

func TestNotifyRolesKeepsDuplicatesByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.directory.members["HR"] = []string{"hr-1", "both"}
	f.directory.members["manager"] = []string{"mgr-1", "both"}

	d, err := f.service.NotifyRoles(ctx, []string{"HR", "manager"}, Payload{Title: "t", Message: "m"})
	require.NoError(t, err)
	assert.Len(t, d.Records, 4)

	page, err := f.service.ListForUser(ctx, "both", ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestNotifyRolesWithDedup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.directory.members["HR"] = []string{"hr-1", "both"}
	f.directory.members["manager"] = []string{"mgr-1", "both"}
	f.connect(t, "hr-1", "HR")
	f.connect(t, "mgr-1", "manager")

	d, err := f.service.NotifyRoles(ctx, []string{"HR", "manager"}, Payload{Title: "t", Message: "m"}, WithDedup())
	require.NoError(t, err)
	assert.Len(t, d.Records, 3)
	assert.Equal(t, 2, d.Pushed)
}

func TestNotifyRolesStopsOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.directory.members["HR"] = []string{"hr-1"}
	f.store.failing = true

	_, err := f.service.NotifyRoles(context.Background(), []string{"HR"}, Payload{Title: "t", Message: "m"})
	assert.ErrorIs(t, err, errStoreDown)

	_, err = f.service.NotifyRoles(context.Background(), nil, Payload{Title: "t", Message: "m"})
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestNotifyRolesReportsCompletedRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.directory.members["HR"] = []string{"hr-1", "hr-2"}
	f.directory.members["admin"] = []string{"adm-1"}
	f.store.failBatch = 2

	d, err := f.service.NotifyRoles(ctx, []string{"HR", "admin"}, Payload{Title: "t", Message: "m"})
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 1, d.CompletedRoles)
	assert.Len(t, d.Records, 2)

	ev := Event{Roles: []string{"HR", "admin"}, Payload: Payload{Title: "t", Message: "m"}}
	assert.Equal(t, []string{"admin"}, ev.Remaining(d).Roles)

	d, err = f.service.NotifyRoles(ctx, []string{"HR", "admin"}, Payload{Title: "t", Message: "m"}, WithExclude("hr-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, d.CompletedRoles)
	assert.Len(t, d.Records, 2)
}

func TestBroadcastIsPushOnly(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "emp-1", "employee")
	b := f.connect(t, "hr-1", "HR")

	pushed, err := f.service.Broadcast(context.Background(), Payload{Title: "Maintenance", Message: "Down at 22:00", Type: NotificationTypeWarning})
	require.NoError(t, err)
	assert.Equal(t, 2, pushed)
	assert.Equal(t, 0, f.store.count())
	assert.Len(t, a.eventFrames(), 1)
	assert.Len(t, b.eventFrames(), 1)
	assert.Empty(t, f.secondary.dispatched())
}

func TestListForUserFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		category := CategoryAttendance
		if i%5 == 0 {
			category = CategoryPayroll
		}
		_, err := f.service.NotifyUser(ctx, "emp-1", Payload{Title: fmt.Sprintf("n%d", i), Message: "m", Category: category})
		require.NoError(t, err)
	}
	_, err := f.service.NotifyUser(ctx, "emp-2", Payload{Title: "other", Message: "m"})
	require.NoError(t, err)

	page, err := f.service.ListForUser(ctx, "emp-1", ListFilter{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 2, PageSize: 10, Total: 25, TotalPages: 3}, page.Pagination)
	require.Len(t, page.Items, 10)
	assert.Equal(t, "n14", page.Items[0].Title, "newest first")

	page, err = f.service.ListForUser(ctx, "emp-1", ListFilter{Category: CategoryPayroll})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Pagination.Total)

	unread := false
	page, err = f.service.ListForUser(ctx, "emp-1", ListFilter{IsRead: &unread, PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(MaxPageSize), page.Pagination.PageSize)
	assert.Len(t, page.Items, 25)
}

func TestMarkReadIsOwnershipScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.service.NotifyUser(ctx, "emp-1", Payload{Title: "t", Message: "m"})
	require.NoError(t, err)

	ok, err := f.service.MarkRead(ctx, n.ID.Hex(), "emp-2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.store.get(t, n.ID).IsRead)

	ok, err = f.service.MarkRead(ctx, "not-an-id", "emp-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.service.MarkRead(ctx, n.ID.Hex(), "emp-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.store.get(t, n.ID).IsRead)

	count, err := f.service.UnreadCount(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMarkManyAndAllRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		n, err := f.service.NotifyUser(ctx, "emp-1", Payload{Title: "t", Message: "m"})
		require.NoError(t, err)
		ids = append(ids, n.ID.Hex())
	}
	foreign, err := f.service.NotifyUser(ctx, "emp-2", Payload{Title: "t", Message: "m"})
	require.NoError(t, err)

	changed, err := f.service.MarkManyRead(ctx, []string{ids[0], ids[1], "bogus", foreign.ID.Hex()}, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	changed, err = f.service.MarkManyRead(ctx, []string{"bogus"}, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed)

	changed, err = f.service.MarkAllRead(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	count, err := f.service.UnreadCount(ctx, "emp-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteIsOwnershipScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.service.NotifyUser(ctx, "emp-1", Payload{Title: "t", Message: "m"})
	require.NoError(t, err)

	ok, err := f.service.Delete(ctx, n.ID.Hex(), "emp-2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, f.store.count())

	ok, err = f.service.Delete(ctx, n.ID.Hex(), "emp-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, f.store.count())
}

func TestCleanupRemovesOldReadRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.service.NotifyUser(ctx, "emp-1", Payload{Title: "old", Message: "m"})
	require.NoError(t, err)
	unreadOld, err := f.service.NotifyUser(ctx, "emp-1", Payload{Title: "old unread", Message: "m"})
	require.NoError(t, err)
	_, err = f.service.MarkRead(ctx, old.ID.Hex(), "emp-1")
	require.NoError(t, err)

	impl := f.service.(*NotificationServiceImpl)
	impl.now = func() time.Time { return f.store.base.AddDate(0, 0, 45) }

	res, err := f.service.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DeletedCount)
	f.store.get(t, unreadOld.ID)

	res, err = f.service.Cleanup(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.DeletedCount)
}

func TestRetentionCutoffDefault(t *testing.T) {
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.AddDate(0, 0, -DefaultRetentionDays), RetentionCutoff(now, 0))
	assert.Equal(t, now.AddDate(0, 0, -7), RetentionCutoff(now, 7))
}
