package tui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/roasbeef/clinbox/internal/analysis"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/roasbeef/clinbox/internal/triage"
	"github.com/stretchr/testify/require"
)

func testView(state triage.AnalysisState) *triage.ItemView {
	return &triage.ItemView{
		Position: 1,
		Total:    5,
		Ref:      mailsource.MessageRef{ID: "m2"},
		Content: &mailsource.Content{
			ID:      "m2",
			From:    "Alice Example <alice@example.com>",
			Subject: "Invoice due",
			Date:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
			Body:    "Please pay the invoice.\nThanks.",
		},
		Analysis: func() triage.AnalysisState { return state },
	}
}

func readyState() triage.AnalysisState {
	return triage.AnalysisState{
		Status: triage.AnalysisReady,
		Result: &analysis.Result{
			MessageID:        "m2",
			Priority:         analysis.PriorityUrgent,
			Category:         analysis.CategoryBilling,
			Summary:          "Invoice is due Friday.",
			SuggestedAction:  "Pay the invoice",
			EstimatedMinutes: 5,
		},
	}
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDecideModel_CommandKeys(t *testing.T) {
	cases := map[string]triage.Command{
		"a": triage.CommandArchive,
		"d": triage.CommandDelete,
		"t": triage.CommandTask,
		"r": triage.CommandReply,
		"o": triage.CommandOpen,
		"v": triage.CommandView,
		"s": triage.CommandSkip,
		"q": triage.CommandQuit,
	}

	for k, want := range cases {
		t.Run(k, func(t *testing.T) {
			m := newDecideModel(
				testView(readyState()), DefaultKeyMap(), nil,
			)

			_, cmd := m.Update(runeKey(k))
			require.NotNil(t, cmd)
			require.True(t, m.done)
			require.Equal(t, want, m.chosen)
			require.Empty(t, m.View())
		})
	}
}

func TestDecideModel_EscQuits(t *testing.T) {
	m := newDecideModel(testView(readyState()), DefaultKeyMap(), nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	require.Equal(t, triage.CommandQuit, m.chosen)
}

func TestDecideModel_UnboundKeyIgnored(t *testing.T) {
	m := newDecideModel(testView(readyState()), DefaultKeyMap(), nil)

	_, cmd := m.Update(runeKey("x"))
	require.Nil(t, cmd)
	require.False(t, m.done)

	_, cmd = m.Update(runeKey("?"))
	require.Nil(t, cmd)
	require.True(t, m.help.ShowAll)
	require.False(t, m.done)
}

func TestDecideModel_RendersReadyCard(t *testing.T) {
	m := newDecideModel(testView(readyState()), DefaultKeyMap(), nil)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	out := m.View()
	require.Contains(t, out, "[2/5]")
	require.Contains(t, out, "Alice Example")
	require.Contains(t, out, "Invoice due")
	require.Contains(t, out, "URGENT")
	require.Contains(t, out, "billing")
	require.Contains(t, out, "~5 min")
	require.Contains(t, out, "Invoice is due Friday.")
	require.Contains(t, out, "Pay the invoice")
	require.Contains(t, out, "archive")
}

func TestDecideModel_RendersPendingAndFailed(t *testing.T) {
	pending := newDecideModel(
		testView(triage.AnalysisState{Status: triage.AnalysisPending}),
		DefaultKeyMap(), nil,
	)
	require.Contains(t, pending.View(), "Analyzing")

	failed := newDecideModel(
		testView(triage.AnalysisState{
			Status: triage.AnalysisFailed,
			Reason: "rate limited",
		}),
		DefaultKeyMap(), nil,
	)
	out := failed.View()
	require.Contains(t, out, "Analysis unavailable")
	require.Contains(t, out, "rate limited")
	require.Contains(t, out, "Please pay the invoice.")
}

func TestDecideModel_NoticesShown(t *testing.T) {
	view := testView(readyState())
	view.Notice = "archive failed earlier"

	m := newDecideModel(view, DefaultKeyMap(), []notice{
		{level: triage.NoticeInfo, msg: "resumed session"},
	})

	out := m.View()
	require.Contains(t, out, "archive failed earlier")
	require.Contains(t, out, "resumed session")
}

func TestPreviewBody(t *testing.T) {
	require.Equal(t, "a\nb", previewBody("a\nb\n", 3))

	out := previewBody("1\n2\n3\n4", 2)
	require.Contains(t, out, "1\n2\n")
	require.Contains(t, out, "2 more lines")
}

func TestSurface_SummaryAndNotices(t *testing.T) {
	var out bytes.Buffer
	s := New(WithOutput(&out), WithInput(&bytes.Buffer{}))

	s.Notify(triage.NoticeWarn, "checkpoint not saved")
	s.Notify(triage.NoticeError, "mail source down")
	require.Contains(t, out.String(), "mail source down")

	s.Summary(&triage.Stats{
		Counts: map[triage.OutcomeKind]int{
			triage.OutcomeArchived: 2,
			triage.OutcomeSkipped:  1,
		},
		Total:     5,
		Remaining: 2,
	})

	text := out.String()
	require.Contains(t, text, "checkpoint not saved")
	require.Contains(t, text, "Triage summary")
	require.Contains(t, text, "archived")
	require.Contains(t, text, "3 of 5 processed")
	require.Contains(t, text, "2 left for next time")
	require.Empty(t, s.takeNotices())
}

func TestSurface_OpenURL(t *testing.T) {
	var opened []string
	s := New(WithOpener(func(url string) error {
		opened = append(opened, url)
		if url == "bad" {
			return errors.New("no browser")
		}

		return nil
	}))

	require.NoError(t, s.OpenURL("https://mail.example/m1"))
	require.Error(t, s.OpenURL("bad"))
	require.Equal(t, []string{"https://mail.example/m1", "bad"}, opened)
}
