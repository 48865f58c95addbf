package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anon_relay_bot/database"
)

const (
	testAdminID int64 = 100
	testGroupID int64 = -200
)

// ============================================
// Фейки
// ============================================

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]*database.Submission
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: make(map[int64]*database.Submission)}
}

func (s *fakeStore) InsertSubmission(ctx context.Context, sub *database.Submission) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *sub
	cp.ID = s.nextID
	cp.Status = database.StatusPending
	s.subs[cp.ID] = &cp
	return cp.ID, nil
}

func (s *fakeStore) GetSubmission(ctx context.Context, id int64) (*database.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *fakeStore) UpdateSubmissionStatus(ctx context.Context, id int64, status database.Status, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok || sub.Status != database.StatusPending {
		return database.ErrNotFound
	}
	sub.Status = status
	sub.RejectionReason = reason
	return nil
}

func (s *fakeStore) delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type fakeGate struct{ open bool }

func (g *fakeGate) Allowed() bool { return g.open }

type sentText struct {
	ChatID int64
	Text   string
}

type sentMedia struct {
	ChatID  int64
	Item    database.MediaItem
	Caption string
}

type sentGroup struct {
	ChatID  int64
	Items   []database.MediaItem
	Caption string
}

type sentReview struct {
	ChatID       int64
	SubmissionID int64
	Text         string
}

type fakeNotifier struct {
	mu      sync.Mutex
	texts   []sentText
	media   []sentMedia
	groups  []sentGroup
	reviews []sentReview
}

func (n *fakeNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, sentText{chatID, text})
	return nil
}

func (n *fakeNotifier) SendMedia(ctx context.Context, chatID int64, item database.MediaItem, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.media = append(n.media, sentMedia{chatID, item, caption})
	return nil
}

func (n *fakeNotifier) SendMediaGroup(ctx context.Context, chatID int64, items []database.MediaItem, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.groups = append(n.groups, sentGroup{chatID, items, caption})
	return nil
}

func (n *fakeNotifier) SendReviewMedia(ctx context.Context, chatID int64, item database.MediaItem, caption string, submissionID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reviews = append(n.reviews, sentReview{chatID, submissionID, caption})
	return nil
}

func (n *fakeNotifier) SendReviewPrompt(ctx context.Context, chatID int64, text string, submissionID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reviews = append(n.reviews, sentReview{chatID, submissionID, text})
	return nil
}

func (n *fakeNotifier) textsTo(chatID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, t := range n.texts {
		if t.ChatID == chatID {
			out = append(out, t.Text)
		}
	}
	return out
}

func (n *fakeNotifier) groupsTo(chatID int64) []sentGroup {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentGroup
	for _, g := range n.groups {
		if g.ChatID == chatID {
			out = append(out, g)
		}
	}
	return out
}

func newTestWorkflow(open bool) (*Workflow, *fakeStore, *fakeNotifier) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	wf := New(store, &fakeGate{open: open}, notifier, testAdminID, testGroupID, "relay_bot", true)
	return wf, store, notifier
}

func photos(n int) []database.MediaItem {
	items := make([]database.MediaItem, n)
	for i := range items {
		items[i] = database.MediaItem{Kind: database.KindPhoto, Ref: fmt.Sprintf("file_%d", i)}
	}
	return items
}

var alice = database.Submitter{ID: 1, Username: "alice", FirstName: "Алиса"}

// ============================================
// Create
// ============================================

func TestCreateStoresPendingAndNotifiesModerator(t *testing.T) {
	wf, store, notifier := newTestWorkflow(true)
	ctx := context.Background()

	id, err := wf.Create(ctx, alice, photos(1), "закат")
	require.NoError(t, err)
	require.NotZero(t, id)

	sub, err := store.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, sub.Status)
	assert.Nil(t, sub.RejectionReason)
	require.NotNil(t, sub.Caption)
	assert.Equal(t, "закат", *sub.Caption)

	// Модератор получает шапку с данными отправителя и превью с кнопками
	adminTexts := notifier.textsTo(testAdminID)
	require.Len(t, adminTexts, 1)
	assert.Contains(t, adminTexts[0], "alice")
	assert.Contains(t, adminTexts[0], "Алиса")

	require.Len(t, notifier.reviews, 1)
	assert.Equal(t, id, notifier.reviews[0].SubmissionID)
}

func TestCreateGateClosed(t *testing.T) {
	wf, store, notifier := newTestWorkflow(false)

	_, err := wf.Create(context.Background(), alice, photos(1), "")
	require.ErrorIs(t, err, ErrGateClosed)

	assert.Zero(t, store.count(), "при закрытом приёме заявка не сохраняется")
	assert.Empty(t, notifier.texts)
	assert.Empty(t, notifier.reviews)
}

func TestCreateAlbumSendsGroupedReview(t *testing.T) {
	wf, _, notifier := newTestWorkflow(true)

	id, err := wf.Create(context.Background(), alice, photos(3), "три фото")
	require.NoError(t, err)

	groups := notifier.groupsTo(testAdminID)
	require.Len(t, groups, 1, "альбом уходит модератору одной группой")
	require.Len(t, groups[0].Items, 3)
	for i, it := range groups[0].Items {
		assert.Equal(t, fmt.Sprintf("file_%d", i), it.Ref, "порядок элементов сохраняется")
	}

	// Кнопки решения идут отдельным сообщением после группы
	require.Len(t, notifier.reviews, 1)
	assert.Equal(t, id, notifier.reviews[0].SubmissionID)
}

// ============================================
// Approve
// ============================================

func TestApprovePublishesAnonymously(t *testing.T) {
	wf, store, notifier := newTestWorkflow(true)
	ctx := context.Background()

	id, err := wf.Create(ctx, alice, photos(1), "закат")
	require.NoError(t, err)

	require.NoError(t, wf.Approve(ctx, testAdminID, id))

	sub, err := store.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, database.StatusApproved, sub.Status)
	assert.Nil(t, sub.RejectionReason)

	// В группу уходит медиа с меткой анонимности, подпись сохранена,
	// данных отправителя нет
	require.Len(t, notifier.media, 1)
	assert.Equal(t, testGroupID, notifier.media[0].ChatID)
	assert.Contains(t, notifier.media[0].Caption, "закат")
	assert.Contains(t, notifier.media[0].Caption, "#анонимно")
	assert.NotContains(t, notifier.media[0].Caption, "alice")
	assert.NotContains(t, notifier.media[0].Caption, "Алиса")

	// Пользователь и модератор уведомлены
	assert.Len(t, notifier.textsTo(alice.ID), 1)
}

func TestApproveUnauthorized(t *testing.T) {
	wf, store, _ := newTestWorkflow(true)
	ctx := context.Background()

	id, err := wf.Create(ctx, alice, photos(1), "")
	require.NoError(t, err)

	require.ErrorIs(t, wf.Approve(ctx, 999, id), ErrUnauthorized)

	sub, err := store.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, sub.Status, "статус не меняется")
}

func TestApproveNotFound(t *testing.T) {
	wf, _, _ := newTestWorkflow(true)
	ctx := context.Background()

	require.ErrorIs(t, wf.Approve(ctx, testAdminID, 42), ErrNotFound)
}

func TestApproveTerminalIsImmutable(t *testing.T) {
	wf, store, _ := newTestWorkflow(true)
	ctx := context.Background()

	id, err := wf.Create(ctx, alice, photos(1), "")
	require.NoError(t, err)
	require.NoError(t, wf.Approve(ctx, testAdminID, id))

	// Повторное решение по терминальной заявке
	require.ErrorIs(t, wf.Approve(ctx, testAdminID, id), ErrNotFound)
	require.ErrorIs(t, wf.Reject(ctx, testAdminID, id), ErrNotFound)

	sub, err := store.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, database.StatusApproved, sub.Status)
}

func TestApproveChunksLargeAlbum(t *testing.T) {
	wf, _, notifier := newTestWorkflow(true)
	ctx := context.Background()

	id, err := wf.Create(ctx, alice, photos(25), "много фото")
	require.NoError(t, err)
	require.NoError(t, wf.Approve(ctx, testAdminID, id))

	groups := notifier.groupsTo(testGroupID)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0].Items, 10)
	assert.Len(t, groups[1].Items, 10)
	assert.Len(t, groups[2].Items, 5)

	// Подпись только на первой группе, порядок сквозной
	assert.Contains(t, groups[0].Caption, "много фото")
	assert.Empty(t, groups[1].Caption)
	assert.Empty(t, groups[2].Caption)

	i := 0
	for _, g := range groups {
		for _, it := range g.Items {
			assert.Equal(t, fmt.Sprintf("file_%d", i), it.Ref)
			i++
		}
	}
}

func TestApproveTextSubmission(t *testing.T) {
	wf, _, notifier := newTestWorkflow(true)
	ctx := context.Background()

	item := database.MediaItem{Kind: database.KindText, Ref: "анонимное признание"}
	id, err := wf.Create(ctx, alice, []database.MediaItem{item}, "")
	require.NoError(t, err)
	require.NoError(t, wf.Approve(ctx, testAdminID, id))

	groupTexts := notifier.textsTo(testGroupID)
	require.Len(t, groupTexts, 1)
	assert.Contains(t, groupTexts[0], "анонимное признание")
	assert.Contains(t, groupTexts[0], "#анонимно")
	assert.NotContains(t, groupTexts[0], "alice")
}

func TestApproveDropsCaptionWhenPolicyOff(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	wf := New(store, &fakeGate{open: true}, notifier, testAdminID, testGroupID, "relay_bot", false)
	ctx := context.Background()

	id, err := wf.Create(ctx, alice, photos(1), "секретная подпись")
	require.NoError(t, err)
	require.NoError(t, wf.Approve(ctx, testAdminID, id))

	require.Len(t, notifier.media, 1)
	assert.NotContains(t, notifier.media[0].Caption, "секретная подпись")
	assert.Contains(t, notifier.media[0].Caption, "#анонимно")
}

// ============================================
// Reject / SupplyReason
// ============================================

func TestRejectThenSupplyReason(t *testing.T) {
	wf, store, notifier := newTestWorkflow(true)
	ctx := context.Background()

	id, err := wf.Create(ctx, alice, photos(1), "")
	require.NoError(t, err)

	require.NoError(t, wf.Reject(ctx, testAdminID, id))

	// Отклонение двухфазное: до причины заявка остаётся pending
	sub, err := store.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, sub.Status)
	assert.True(t, wf.HasPendingReason(testAdminID))

	require.NoError(t, wf.SupplyReason(ctx, testAdminID, "размытое фото"))

	sub, err = store.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, database.StatusRejected, sub.Status)
	require.NotNil(t, sub.RejectionReason)
	assert.Equal(t, "размытое фото", *sub.RejectionReason)
	assert.False(t, wf.HasPendingReason(testAdminID))

	// Пользователь получает ровно одно уведомление с причиной
	userTexts := notifier.textsTo(alice.ID)
	require.Len(t, userTexts, 1)
	assert.Contains(t, userTexts[0], "размытое фото")
}

func TestRejectUnauthorized(t *testing.T) {
	wf, _, _ := newTestWorkflow(true)
	ctx := context.Background()

	id, err := wf.Create(ctx, alice, photos(1), "")
	require.NoError(t, err)

	require.ErrorIs(t, wf.Reject(ctx, 999, id), ErrUnauthorized)
	assert.False(t, wf.HasPendingReason(999))
}

func TestSupplyReasonWithoutPendingRejection(t *testing.T) {
	wf, _, _ := newTestWorkflow(true)

	err := wf.SupplyReason(context.Background(), testAdminID, "не было отклонения")
	require.ErrorIs(t, err, ErrNoPendingRejection)
}

// Повторное отклонение до присланной причины молча перезаписывает маркер:
// первая заявка навсегда остаётся в pending. Известное ограничение,
// зафиксировано в DESIGN.md.
func TestSecondRejectOverwritesPendingReason(t *testing.T) {
	wf, store, _ := newTestWorkflow(true)
	ctx := context.Background()

	id1, err := wf.Create(ctx, alice, photos(1), "")
	require.NoError(t, err)
	id2, err := wf.Create(ctx, database.Submitter{ID: 2, Username: "bob"}, photos(1), "")
	require.NoError(t, err)

	require.NoError(t, wf.Reject(ctx, testAdminID, id1))
	require.NoError(t, wf.Reject(ctx, testAdminID, id2))
	require.NoError(t, wf.SupplyReason(ctx, testAdminID, "bad"))

	sub2, err := store.GetSubmission(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, database.StatusRejected, sub2.Status)
	require.NotNil(t, sub2.RejectionReason)
	assert.Equal(t, "bad", *sub2.RejectionReason)

	sub1, err := store.GetSubmission(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, sub1.Status, "первая заявка осталась без решения")
	assert.Nil(t, sub1.RejectionReason)
}

func TestSupplyReasonForVanishedSubmissionClearsMarker(t *testing.T) {
	wf, store, _ := newTestWorkflow(true)
	ctx := context.Background()

	id, err := wf.Create(ctx, alice, photos(1), "")
	require.NoError(t, err)
	require.NoError(t, wf.Reject(ctx, testAdminID, id))

	store.delete(id)

	require.ErrorIs(t, wf.SupplyReason(ctx, testAdminID, "поздно"), ErrNotFound)
	assert.False(t, wf.HasPendingReason(testAdminID), "маркер очищен, модератор не застрял")
}

func TestSupplyReasonUnauthorized(t *testing.T) {
	wf, _, _ := newTestWorkflow(true)

	err := wf.SupplyReason(context.Background(), 999, "чужая причина")
	require.ErrorIs(t, err, ErrUnauthorized)
}

// ============================================
// chunkItems
// ============================================

func TestChunkItems(t *testing.T) {
	tests := []struct {
		n    int
		want []int
	}{
		{0, nil},
		{1, []int{1}},
		{10, []int{10}},
		{11, []int{10, 1}},
		{25, []int{10, 10, 5}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.n), func(t *testing.T) {
			chunks := chunkItems(photos(tt.n))
			require.Len(t, chunks, len(tt.want))
			for i, want := range tt.want {
				assert.Len(t, chunks[i], want)
			}
		})
	}
}

func TestReviewHeaderNeverReachesGroup(t *testing.T) {
	wf, _, notifier := newTestWorkflow(true)
	ctx := context.Background()

	id, err := wf.Create(ctx, alice, photos(2), "")
	require.NoError(t, err)
	require.NoError(t, wf.Approve(ctx, testAdminID, id))

	for _, text := range notifier.textsTo(testGroupID) {
		assert.False(t, strings.Contains(text, "alice") || strings.Contains(text, "UserID"),
			"данные отправителя не должны попадать в группу: %q", text)
	}
	for _, g := range notifier.groupsTo(testGroupID) {
		assert.NotContains(t, g.Caption, "alice")
	}
}
