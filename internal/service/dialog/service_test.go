package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/sanatorium/backend/internal/model/booking"
	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	calls  []booking.Request
	result booking.Result
	err    error
}

func (f *fakeSubmitter) Submit(_ context.Context, req booking.Request) (booking.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.result, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeGenerator struct {
	requests []dialog.GenerationRequest
	err      error
}

func (g *fakeGenerator) Generate(_ context.Context, req dialog.GenerationRequest) (string, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	return "generated:" + string(req.Prompt), nil
}

func (g *fakeGenerator) Stream(ctx context.Context, req dialog.GenerationRequest, emit func(string) error) (string, error) {
	text, err := g.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if err := emit(text); err != nil {
		return "", err
	}
	return text, nil
}

// brokenStreamGenerator sends one chunk and then fails.
type brokenStreamGenerator struct{}

func (brokenStreamGenerator) Generate(context.Context, dialog.GenerationRequest) (string, error) {
	return "", errors.New("stream interrupted")
}

func (brokenStreamGenerator) Stream(_ context.Context, _ dialog.GenerationRequest, emit func(string) error) (string, error) {
	if err := emit("Добрый "); err != nil {
		return "", err
	}
	return "", errors.New("stream interrupted")
}

func newTestService(sub *fakeSubmitter, gen Generator) *Service {
	return NewService(NewStore(), sub, gen, Options{})
}

func successSubmitter() *fakeSubmitter {
	return &fakeSubmitter{result: booking.Result{Success: true, BookingID: "BK-1"}}
}

func process(t *testing.T, svc *Service, id string, inputs ...string) dialog.Response {
	t.Helper()
	var resp dialog.Response
	for _, in := range inputs {
		var err error
		resp, err = svc.ProcessInput(context.Background(), id, in)
		require.NoError(t, err)
	}
	return resp
}

func TestWelcomeBookingIntentStartsCollection(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	resp := process(t, svc, "s1", "Хочу забронировать номер")

	assert.Equal(t, "booking", resp.Intent)
	assert.Equal(t, dialog.StageCollecting, resp.Stage)
	assert.Equal(t, dialog.PromptBookingStart, resp.NextPrompt)
	assert.Equal(t, dialog.RequiredFields(), resp.MissingFields)
}

func TestWelcomeOtherIntentsStay(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	resp := process(t, svc, "s1", "Сколько стоит номер?")
	assert.Equal(t, dialog.StageWelcome, resp.Stage)
	assert.Equal(t, dialog.PromptPricingInfo, resp.NextPrompt)
	assert.False(t, resp.Suspended)

	resp = process(t, svc, "s1", "Какая у вас погода?")
	assert.Equal(t, dialog.StageWelcome, resp.Stage)
	assert.Equal(t, dialog.PromptGeneralQA, resp.NextPrompt)

	resp = process(t, svc, "s1", "")
	assert.Equal(t, "general", resp.Intent)
	assert.Equal(t, dialog.PromptGeneralQA, resp.NextPrompt)
}

func TestCollectingStoresValidFieldsInOrder(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	resp := process(t, svc, "s1", "забронировать", "20250101")
	assert.Equal(t, dialog.StageCollecting, resp.Stage)
	assert.Equal(t, dialog.PromptAskGuests, resp.NextPrompt)

	sess, err := svc.Session(context.Background(), "s1")
	require.NoError(t, err)
	dates, ok := sess.Data.Get(dialog.FieldDates)
	require.True(t, ok)
	assert.Equal(t, "20250101", dates)

	resp = process(t, svc, "s1", "2")
	assert.Equal(t, dialog.PromptAskContact, resp.NextPrompt)
}

func TestCollectingRejectsInvalidValue(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	resp := process(t, svc, "s1", "забронировать", "1 января")

	assert.Equal(t, dialog.StageCollecting, resp.Stage)
	assert.Equal(t, dialog.ErrorInvalidDate, resp.ErrorKind)
	assert.Equal(t, dialog.PromptAskDates, resp.NextPrompt)

	sess, err := svc.Session(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, sess.Data.Present(dialog.FieldDates))

	resp = process(t, svc, "s1", "20250101", "много")
	assert.Equal(t, dialog.ErrorInvalidGuests, resp.ErrorKind)
	assert.Equal(t, dialog.PromptAskGuests, resp.NextPrompt)
}

func TestFullBookingHappyPath(t *testing.T) {
	sub := successSubmitter()
	svc := newTestService(sub, nil)

	resp := process(t, svc, "s1", "забронировать", "20250101-20250105", "2", "+79991234567")
	assert.Equal(t, dialog.StageConfirming, resp.Stage)
	assert.Equal(t, dialog.PromptBookingConfirmation, resp.NextPrompt)
	require.NotNil(t, resp.CollectedData["guests"])
	assert.Equal(t, "2", *resp.CollectedData["guests"])

	resp = process(t, svc, "s1", "Да")
	assert.Equal(t, dialog.StageCompleted, resp.Stage)
	require.NotNil(t, resp.BookingConfirmed)
	assert.True(t, *resp.BookingConfirmed)
	assert.Equal(t, "BK-1", resp.BookingID)
	assert.Contains(t, resp.AssistantResponse, "BK-1")

	require.Equal(t, 1, sub.count())
	assert.Equal(t, 2, sub.calls[0].GuestCount)
	assert.Equal(t, 4, sub.calls[0].Nights())

	sess, err := svc.Session(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, sess.Data.Map()["dates"])
	assert.Equal(t, dialog.RequiredFields(), sess.Data.Missing())
}

func TestSubmissionFailureMovesToFailed(t *testing.T) {
	tests := []struct {
		name string
		sub  *fakeSubmitter
	}{
		{name: "rejected", sub: &fakeSubmitter{result: booking.Result{Error: "no rooms"}}},
		{name: "unreachable", sub: &fakeSubmitter{err: errors.New("connection refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(tt.sub, nil)

			resp := process(t, svc, "s1", "забронировать", "20250101", "2", "guest@example.com", "да")

			assert.Equal(t, dialog.StageFailed, resp.Stage)
			assert.Equal(t, dialog.ErrorSubmissionFailed, resp.ErrorKind)
			require.NotNil(t, resp.BookingConfirmed)
			assert.False(t, *resp.BookingConfirmed)
			assert.NotEmpty(t, resp.AssistantResponse)

			sess, err := svc.Session(context.Background(), "s1")
			require.NoError(t, err)
			assert.True(t, sess.Data.Complete())
		})
	}
}

func TestConfirmingUnrecognizedAnswerReprompts(t *testing.T) {
	sub := successSubmitter()
	svc := newTestService(sub, nil)

	resp := process(t, svc, "s1", "забронировать", "20250101", "2", "guest@example.com", "может быть")

	assert.Equal(t, dialog.StageConfirming, resp.Stage)
	assert.Equal(t, dialog.PromptBookingConfirmation, resp.NextPrompt)
	assert.Contains(t, resp.AssistantResponse, "да/нет")
	assert.Zero(t, sub.count())
}

func TestCancelClearsData(t *testing.T) {
	for _, stage := range []string{"collecting", "confirming"} {
		t.Run(stage, func(t *testing.T) {
			sub := successSubmitter()
			svc := newTestService(sub, nil)

			inputs := []string{"забронировать", "20250101"}
			if stage == "confirming" {
				inputs = append(inputs, "2", "guest@example.com")
			}
			process(t, svc, "s1", inputs...)

			resp := process(t, svc, "s1", "Отмена")
			assert.Equal(t, dialog.StageWelcome, resp.Stage)
			assert.Equal(t, dialog.PromptBookingCancelled, resp.NextPrompt)
			require.NotNil(t, resp.BookingConfirmed)
			assert.False(t, *resp.BookingConfirmed)

			sess, err := svc.Session(context.Background(), "s1")
			require.NoError(t, err)
			assert.Len(t, sess.Data.Missing(), 3)
			assert.Zero(t, sub.count())
		})
	}
}

func TestConfirmingWithIncompleteDataNeverSubmits(t *testing.T) {
	sub := successSubmitter()
	svc := newTestService(sub, nil)
	ctx := context.Background()

	require.NoError(t, svc.Store().Do(ctx, "s1", func(s *dialog.Session) error {
		s.Stage = dialog.StageConfirming
		return s.Data.Set(dialog.FieldDates, "20250101")
	}))

	resp := process(t, svc, "s1", "да")

	assert.Equal(t, dialog.ErrorIncompleteData, resp.ErrorKind)
	assert.Equal(t, dialog.StageCollecting, resp.Stage)
	assert.Equal(t, []dialog.Field{dialog.FieldGuests, dialog.FieldContact}, resp.MissingFields)
	assert.Zero(t, sub.count())
}

func TestPricingInterruptionSavesAndResumes(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	resp := process(t, svc, "s1", "забронировать", "20250101")
	assert.Equal(t, dialog.PromptAskGuests, resp.NextPrompt)

	resp = process(t, svc, "s1", "А сколько стоит номер?")
	assert.Equal(t, "pricing", resp.Intent)
	assert.Equal(t, dialog.StageWelcome, resp.Stage)
	assert.Equal(t, dialog.PromptPricingInfo, resp.NextPrompt)
	assert.True(t, resp.Suspended)

	resp = process(t, svc, "s1", "Продолжить")
	assert.Equal(t, dialog.StageCollecting, resp.Stage)
	assert.Equal(t, dialog.PromptBookingResume, resp.NextPrompt)
	assert.Equal(t, []dialog.Field{dialog.FieldGuests, dialog.FieldContact}, resp.MissingFields)
	require.NotNil(t, resp.CollectedData["dates"])
	assert.Equal(t, "20250101", *resp.CollectedData["dates"])

	resp = process(t, svc, "s1", "3")
	assert.Equal(t, dialog.PromptAskContact, resp.NextPrompt)
}

func TestBookingIntentAlsoResumes(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	process(t, svc, "s1", "забронировать", "20250101", "2", "цена?")
	resp := process(t, svc, "s1", "хочу забронировать")

	assert.Equal(t, dialog.StageCollecting, resp.Stage)
	assert.Equal(t, dialog.PromptBookingResume, resp.NextPrompt)
	assert.Equal(t, []dialog.Field{dialog.FieldContact}, resp.MissingFields)
}

func TestCancelDropsSuspendedBooking(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	resp := process(t, svc, "s1", "забронировать", "20250101", "2", "сколько стоит?")
	require.True(t, resp.Suspended)

	resp = process(t, svc, "s1", "отмена")
	assert.Equal(t, dialog.StageWelcome, resp.Stage)
	assert.Equal(t, dialog.PromptBookingCancelled, resp.NextPrompt)
	assert.Equal(t, msgBookingCancelled, resp.AssistantResponse)
	assert.False(t, resp.Suspended)

	resp = process(t, svc, "s1", "хочу забронировать")
	assert.Equal(t, dialog.PromptBookingStart, resp.NextPrompt)
	assert.Equal(t, dialog.RequiredFields(), resp.MissingFields)
	assert.Nil(t, resp.CollectedData["dates"])
}

func TestConfirmWithUnparsableDataAsksAgain(t *testing.T) {
	sub := successSubmitter()
	svc := newTestService(sub, nil)
	ctx := context.Background()

	require.NoError(t, svc.Store().Do(ctx, "s1", func(s *dialog.Session) error {
		s.Stage = dialog.StageConfirming
		require.NoError(t, s.Data.Set(dialog.FieldDates, "someday"))
		require.NoError(t, s.Data.Set(dialog.FieldGuests, "2"))
		return s.Data.Set(dialog.FieldContact, "guest@example.com")
	}))

	resp := process(t, svc, "s1", "да")
	assert.Equal(t, dialog.StageCollecting, resp.Stage)
	assert.Equal(t, dialog.ErrorInvalidDate, resp.ErrorKind)
	assert.Equal(t, dialog.PromptAskDates, resp.NextPrompt)
	assert.Equal(t, []dialog.Field{dialog.FieldDates}, resp.MissingFields)
	assert.Zero(t, sub.count())

	resp = process(t, svc, "s1", "20250101")
	assert.Equal(t, dialog.StageConfirming, resp.Stage)
	assert.Equal(t, dialog.PromptBookingConfirmation, resp.NextPrompt)
}

func TestTerminalStagesNeedReset(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)
	ctx := context.Background()

	process(t, svc, "s1", "забронировать", "20250101", "2", "guest@example.com", "да")

	resp := process(t, svc, "s1", "забронировать")
	assert.Equal(t, dialog.StageCompleted, resp.Stage)
	assert.Equal(t, dialog.PromptBookingFinished, resp.NextPrompt)

	sess, err := svc.Reset(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, dialog.StageWelcome, sess.Stage)
	assert.NotEmpty(t, sess.History)

	resp = process(t, svc, "s1", "забронировать")
	assert.Equal(t, dialog.StageCollecting, resp.Stage)
}

func TestResetUnknownSession(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	_, err := svc.Reset(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Session(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUnknownSessionIsCreatedOnce(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	process(t, svc, "fresh", "привет")
	process(t, svc, "fresh", "привет")

	assert.Equal(t, 1, svc.Store().Len())
	sess, err := svc.Session(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Len(t, sess.History, 2)
}

func TestEmptySessionIDRejected(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	_, err := svc.ProcessInput(context.Background(), "", "привет")
	assert.ErrorIs(t, err, ErrSessionRequired)
}

func TestSessionsAreIsolated(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)

	process(t, svc, "a", "забронировать", "20250101")
	resp := process(t, svc, "b", "привет")

	assert.Equal(t, dialog.StageWelcome, resp.Stage)
	a, err := svc.Session(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, dialog.StageCollecting, a.Stage)
}

func TestConcurrentTurnsAcrossSessions(t *testing.T) {
	sub := successSubmitter()
	svc := newTestService(sub, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for _, in := range []string{"забронировать", "20250101", "2", "guest@example.com", "да"} {
				_, err := svc.ProcessInput(context.Background(), id, in)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, svc.Store().Len())
	assert.Equal(t, 20, sub.count())
}

func TestConcurrentTurnsOnOneSessionAreSerialized(t *testing.T) {
	sub := successSubmitter()
	svc := newTestService(sub, nil)
	ctx := context.Background()

	process(t, svc, "s1", "забронировать", "20250101", "2", "guest@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessInput(ctx, "s1", "да")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := svc.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, dialog.StageCompleted, sess.Stage)
	assert.Len(t, sess.History, 6)
	assert.Equal(t, 1, sub.count())
}

func TestReplyGeneratesText(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newTestService(successSubmitter(), gen)
	ctx := context.Background()

	out, err := svc.Reply(ctx, "s1", "привет")
	require.NoError(t, err)
	assert.Equal(t, "generated:general_qa", out.Text)
	assert.False(t, out.Degraded)

	for _, in := range []string{"вопрос", "ещё вопрос", "и ещё"} {
		_, err = svc.Reply(ctx, "s1", in)
		require.NoError(t, err)
	}
	last := gen.requests[len(gen.requests)-1]
	assert.Len(t, last.History, 3)
	assert.Equal(t, "и ещё", last.UserText)

	sess, err := svc.Session(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sess.History, 4)
	assert.True(t, sess.History[0].Answered)
	assert.Equal(t, "generated:general_qa", sess.History[0].AssistantText)
}

func TestReplyUsesLiteralWithoutGenerating(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newTestService(successSubmitter(), gen)

	process(t, svc, "s1", "забронировать", "20250101", "2", "guest@example.com")
	before := len(gen.requests)

	out, err := svc.Reply(context.Background(), "s1", "да")
	require.NoError(t, err)
	assert.Contains(t, out.Text, "BK-1")
	assert.Len(t, gen.requests, before)
}

func TestReplyFallsBackWhenGenerationFails(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model down")}
	svc := newTestService(successSubmitter(), gen)

	out, err := svc.Reply(context.Background(), "s1", "привет")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, out.Text)
	assert.True(t, out.Degraded)
	assert.Equal(t, dialog.StageWelcome, out.Response.Stage)
}

func TestStreamReplyEmitsDeltas(t *testing.T) {
	svc := newTestService(successSubmitter(), &fakeGenerator{})

	var deltas []string
	out, err := svc.StreamReply(context.Background(), "s1", "забронировать", func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"generated:booking_start"}, deltas)
	assert.Equal(t, "generated:booking_start", out.Text)
}

func TestStreamFailureAfterDeltaIsNotAppended(t *testing.T) {
	svc := newTestService(successSubmitter(), brokenStreamGenerator{})

	var deltas []string
	out, err := svc.StreamReply(context.Background(), "s1", "привет", func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Добрый "}, deltas)
	assert.Equal(t, FallbackReply, out.Text)
	assert.True(t, out.Degraded)
	assert.True(t, out.Replaced)
}

func TestStreamFailureBeforeDeltaEmitsFallback(t *testing.T) {
	svc := newTestService(successSubmitter(), &fakeGenerator{err: errors.New("model down")})

	var deltas []string
	out, err := svc.StreamReply(context.Background(), "s1", "привет", func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{FallbackReply}, deltas)
	assert.True(t, out.Degraded)
	assert.False(t, out.Replaced)
}

func TestSaveAndRestoreContext(t *testing.T) {
	svc := newTestService(successSubmitter(), nil)
	ctx := context.Background()

	process(t, svc, "s1", "забронировать", "20250101")
	require.NoError(t, svc.SaveContext(ctx, "s1"))

	require.NoError(t, svc.Store().Do(ctx, "s1", func(s *dialog.Session) error {
		return s.Data.Set(dialog.FieldGuests, "9")
	}))

	restored, err := svc.RestoreContext(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, restored)

	sess, err := svc.Session(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, sess.Data.Present(dialog.FieldGuests))

	restored, err = svc.RestoreContext(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestStoreDoHonorsContext(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = store.Do(ctx, "s1", func(*dialog.Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := store.Do(cancelled, "s1", func(*dialog.Session) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestVocabularyNormalizes(t *testing.T) {
	v := DefaultVocabulary()

	assert.True(t, v.IsConfirm("  Да! "))
	assert.True(t, v.IsCancel("CANCEL"))
	assert.True(t, v.IsResume("продолжить."))
	assert.False(t, v.IsConfirm("да, но"))
	assert.Equal(t, "да/нет", v.Hint())
}
