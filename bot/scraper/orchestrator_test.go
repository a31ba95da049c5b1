package scraper

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubFetcher struct {
	pages []string
	errs  []error
	calls int
}

func (f *stubFetcher) FetchPage(context.Context, string) (string, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var page string
	if i < len(f.pages) {
		page = f.pages[i]
	}
	return page, err
}

func instantConfig(maxRetries int) OrchestratorConfig {
	return OrchestratorConfig{MaxRetries: maxRetries}.Explicit()
}

func applePage(code string) string {
	return page(messageBlock("Apple", code))
}

func TestOrchestratorRetriesUntilNonEmpty(t *testing.T) {
	fetcher := &stubFetcher{pages: []string{"<html></html>", "<html></html>", applePage("code 42")}}
	o := NewOrchestrator(fetcher, NewExtractor("Apple"), instantConfig(2))

	var notices []int
	got, err := o.FetchVerificationMessages(context.Background(), "+1 (555) 123-4567", func(attempt, total int, _ time.Duration) {
		if total != 3 {
			t.Fatalf("total = %d", total)
		}
		notices = append(notices, attempt)
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if fetcher.calls != 3 {
		t.Fatalf("attempts = %d, expected 3", fetcher.calls)
	}
	if len(got) != 1 || got[0] != "code 42" {
		t.Fatalf("messages = %v", got)
	}
	if len(notices) != 2 || notices[0] != 1 || notices[1] != 2 {
		t.Fatalf("progress notices = %v", notices)
	}
}

func TestOrchestratorStopsEarlyOnFirstHit(t *testing.T) {
	fetcher := &stubFetcher{pages: []string{applePage("first try")}}
	o := NewOrchestrator(fetcher, NewExtractor("Apple"), instantConfig(2))

	got, err := o.FetchVerificationMessages(context.Background(), "15551234567", nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("attempts = %d, expected 1", fetcher.calls)
	}
	if len(got) != 1 {
		t.Fatalf("messages = %v", got)
	}
}

func TestOrchestratorExhaustsToEmpty(t *testing.T) {
	fetcher := &stubFetcher{}
	o := NewOrchestrator(fetcher, NewExtractor("Apple"), instantConfig(2))

	got, err := o.FetchVerificationMessages(context.Background(), "15551234567", nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if fetcher.calls != 3 {
		t.Fatalf("attempts = %d, expected 3", fetcher.calls)
	}
	if len(got) != 0 {
		t.Fatalf("messages = %v, expected none", got)
	}
}

func TestOrchestratorTreatsFetchErrorsAsEmptyAttempts(t *testing.T) {
	boom := errors.New("blocked")
	fetcher := &stubFetcher{
		errs:  []error{boom, boom, nil},
		pages: []string{"", "", applePage("after failures")},
	}
	o := NewOrchestrator(fetcher, NewExtractor("Apple"), instantConfig(2))

	got, err := o.FetchVerificationMessages(context.Background(), "15551234567", nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if fetcher.calls != 3 {
		t.Fatalf("attempts = %d, expected 3", fetcher.calls)
	}
	if len(got) != 1 || got[0] != "after failures" {
		t.Fatalf("messages = %v", got)
	}
}

func TestOrchestratorAbortsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &stubFetcher{errs: []error{context.Canceled}}
	o := NewOrchestrator(fetcher, NewExtractor("Apple"), instantConfig(2))

	got, err := o.FetchVerificationMessages(ctx, "15551234567", nil)
	if err == nil {
		t.Fatal("expected context error")
	}
	if len(got) != 0 {
		t.Fatalf("messages = %v", got)
	}
	if fetcher.calls > 1 {
		t.Fatalf("retried after abort: %d attempts", fetcher.calls)
	}
}

func TestPhoneDigits(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 123-4567": "15551234567",
		"15551234567":       "15551234567",
		"+44-7911 123456":   "447911123456",
		"no digits":         "",
	}
	for in, want := range cases {
		if got := PhoneDigits(in); got != want {
			t.Errorf("PhoneDigits(%q) = %q, expected %q", in, got, want)
		}
	}
}
