package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"

	"github.com/wricardo/kiosk-shell/kiosk/view"
)

func TestSameDocument(t *testing.T) {
	tests := []struct {
		prev, next string
		want       bool
	}{
		{"https://a.example/p", "https://a.example/p#top", true},
		{"https://a.example/p#one", "https://a.example/p#two", true},
		{"https://a.example/p", "https://a.example/q", false},
		{"https://a.example/p", "https://a.example/p", false},
		{"", "https://a.example/p#top", false},
	}
	for _, tt := range tests {
		t.Run(tt.prev+"->"+tt.next, func(t *testing.T) {
			assert.Equal(t, tt.want, sameDocument(tt.prev, tt.next))
		})
	}
}

func TestTranslateGotoError(t *testing.T) {
	le := translateGotoError(fmt.Errorf("page.goto: %w", playwright.ErrTimeout))
	assert.Equal(t, view.CodeTimedOut, le.Code)

	le = translateGotoError(errors.New("page.goto: net::ERR_NAME_NOT_RESOLVED at https://x.example/"))
	assert.Equal(t, view.CodeNameNotResolved, le.Code)
	assert.Equal(t, "ERR_NAME_NOT_RESOLVED", le.Description)
}

func TestGotoTimeout(t *testing.T) {
	assert.Zero(t, gotoTimeout(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ms := gotoTimeout(ctx)
	assert.Greater(t, ms, float64((time.Minute + gotoGrace).Milliseconds()-1000))
	assert.LessOrEqual(t, ms, float64((time.Minute + gotoGrace).Milliseconds()))
	assert.Greater(t, ms, float64(time.Minute.Milliseconds()), "playwright gives up after the context")

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.Equal(t, float64(gotoGrace.Milliseconds()), gotoTimeout(expired))
}

func TestRun(t *testing.T) {
	assert.NoError(t, run(context.Background(), func() error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := make(chan struct{})
	defer close(block)
	err := run(ctx, func() error { <-block; return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLaunchOptions(t *testing.T) {
	lo := launchOptions(Options{Host: view.Size{Width: 1080, Height: 1920}, Channel: "chrome"})
	assert.Equal(t, 1080, lo.Viewport.Width)
	assert.Equal(t, "chrome", *lo.Channel)
	assert.Contains(t, lo.Args, "--kiosk")

	lo = launchOptions(Options{Headless: true})
	assert.Nil(t, lo.Viewport)
	assert.Empty(t, lo.Args)
	assert.True(t, *lo.Headless)
}
