package markethours

import (
	"testing"
	"time"
)

func jst(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, JST)
}

func TestInStrategySession_Boundaries(t *testing.T) {
	cases := []struct {
		at   time.Time
		want bool
	}{
		{jst(2026, 3, 17, 15, 59, 59), false},
		{jst(2026, 3, 17, 16, 0, 0), true},
		{jst(2026, 3, 17, 20, 30, 0), true},
		{jst(2026, 3, 17, 23, 59, 59), true},
		{jst(2026, 3, 18, 0, 0, 0), false},
		{jst(2026, 3, 17, 3, 0, 0), false},
	}
	for _, tc := range cases {
		if got := InStrategySession(tc.at); got != tc.want {
			t.Errorf("InStrategySession(%v) = %v, want %v", tc.at, got, tc.want)
		}
	}

	// A UTC instant is judged in JST: 08:00 UTC is 17:00 JST.
	if !InStrategySession(time.Date(2026, 3, 17, 8, 0, 0, 0, time.UTC)) {
		t.Error("08:00 UTC (17:00 JST) must be in session")
	}
}

func TestInStrategySessionAt_CustomWindow(t *testing.T) {
	at := jst(2026, 3, 17, 14, 0, 0)
	if InStrategySessionAt(at, 16, 24) {
		t.Error("14:00 outside default window")
	}
	if !InStrategySessionAt(at, 9, 17) {
		t.Error("14:00 inside 9-17 window")
	}
}

func TestIsFXWeekend(t *testing.T) {
	cases := []struct {
		at   time.Time
		want bool
	}{
		{jst(2026, 3, 20, 23, 0, 0), false}, // Friday night
		{jst(2026, 3, 21, 6, 59, 0), false}, // Saturday before the NY close
		{jst(2026, 3, 21, 7, 0, 0), true},   // Saturday 07:00
		{jst(2026, 3, 22, 12, 0, 0), true},  // Sunday
		{jst(2026, 3, 23, 6, 59, 0), true},  // Monday before open
		{jst(2026, 3, 23, 7, 0, 0), false},  // Monday open
	}
	for _, tc := range cases {
		if got := IsFXWeekend(tc.at); got != tc.want {
			t.Errorf("IsFXWeekend(%v) = %v, want %v", tc.at, got, tc.want)
		}
	}
}

func TestActiveSession(t *testing.T) {
	cases := []struct {
		hour     int
		session  Session
		activity string
	}{
		{3, SessionWellington, "LOW"},
		{6, SessionWellington, "LOW"},
		{7, SessionTokyo, "MEDIUM"},
		{14, SessionTokyo, "MEDIUM"},
		{15, SessionLondon, "HIGH"},
		{20, SessionLondon, "HIGH"},
		{21, SessionNewYork, "HIGH"},
		{23, SessionNewYork, "HIGH"},
	}
	for _, tc := range cases {
		s, a := ActiveSession(jst(2026, 3, 17, tc.hour, 0, 0))
		if s != tc.session || a != tc.activity {
			t.Errorf("hour %d: (%s, %s), want (%s, %s)", tc.hour, s, a, tc.session, tc.activity)
		}
	}
}

func TestWeekTiming(t *testing.T) {
	cases := []struct {
		day  int // March 2026: 16=Mon .. 22=Sun
		want string
	}{
		{16, "WEEK_OPEN"},
		{17, "WEEK_OPEN"},
		{18, "MID_WEEK"},
		{19, "MID_WEEK"},
		{20, "WEEK_CLOSE"},
		{21, "WEEK_CLOSE"},
	}
	for _, tc := range cases {
		if got := WeekTiming(jst(2026, 3, tc.day, 12, 0, 0)); got != tc.want {
			t.Errorf("day %d: %s, want %s", tc.day, got, tc.want)
		}
	}
}

func TestRecommendation(t *testing.T) {
	// Wednesday 20:00 JST: London session mid-week.
	if got := Recommendation(jst(2026, 3, 18, 20, 0, 0)); got != "TRADE_ACTIVELY" {
		t.Errorf("London midweek = %s", got)
	}
	// Tuesday 10:00 JST: Tokyo session early week.
	if got := Recommendation(jst(2026, 3, 17, 10, 0, 0)); got != "TRADE_CAUTIOUSLY" {
		t.Errorf("Tokyo Tuesday = %s", got)
	}
	// Monday 10:00 JST: Tokyo but week open.
	if got := Recommendation(jst(2026, 3, 16, 10, 0, 0)); got != "WAIT_AND_SEE" {
		t.Errorf("Tokyo Monday = %s", got)
	}
	// Friday 20:00 JST: London but week close.
	if got := Recommendation(jst(2026, 3, 20, 20, 0, 0)); got != "WAIT_AND_SEE" {
		t.Errorf("London Friday = %s", got)
	}
}
