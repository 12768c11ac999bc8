// Package markethours knows the FX trading calendar: global session
// windows, the pullback strategy's JST trading window, and the timing
// context attached to every integrated verdict.
package markethours

import "time"

// JST is Japan Standard Time (UTC+9). FX session boundaries and the
// strategy window are defined against it.
var JST = time.FixedZone("JST", 9*3600)

// Strategy trading window in JST. The pullback strategy only acts during
// the London/NY overlap hours of the Tokyo evening.
const (
	SessionStartHour = 16
	SessionEndHour   = 24
)

// InStrategySession reports whether t falls in the 16:00–24:00 JST window.
func InStrategySession(t time.Time) bool {
	h := t.In(JST).Hour()
	return h >= SessionStartHour && h < SessionEndHour
}

// InStrategySessionAt reports the window check against custom JST hours,
// for operator-tuned windows. end = 24 means midnight exclusive.
func InStrategySessionAt(t time.Time, startHour, endHour int) bool {
	h := t.In(JST).Hour()
	return h >= startHour && h < endHour
}

// IsFXWeekend reports whether the FX market is in its weekend close:
// Saturday 07:00 JST through Monday 07:00 JST.
func IsFXWeekend(t time.Time) bool {
	jst := t.In(JST)
	switch jst.Weekday() {
	case time.Saturday:
		return jst.Hour() >= 7
	case time.Sunday:
		return true
	case time.Monday:
		return jst.Hour() < 7
	default:
		return false
	}
}

// Session names the dominant global session for a moment in time.
type Session string

const (
	SessionWellington Session = "WELLINGTON_SYDNEY"
	SessionTokyo      Session = "TOKYO"
	SessionLondon     Session = "LONDON"
	SessionNewYork    Session = "NEW_YORK"
)

// ActiveSession maps the JST hour to the dominant session and its typical
// activity level (LOW/MEDIUM/HIGH).
func ActiveSession(t time.Time) (Session, string) {
	switch h := t.In(JST).Hour(); {
	case h < 7:
		return SessionWellington, "LOW"
	case h < 15:
		return SessionTokyo, "MEDIUM"
	case h < 21:
		return SessionLondon, "HIGH"
	default:
		return SessionNewYork, "HIGH"
	}
}

// WeekTiming describes where in the trading week t sits:
// early week has no established direction, mid-week trends persist, late
// week positions get squared.
func WeekTiming(t time.Time) string {
	switch t.In(JST).Weekday() {
	case time.Monday, time.Tuesday:
		return "WEEK_OPEN"
	case time.Wednesday, time.Thursday:
		return "MID_WEEK"
	default:
		return "WEEK_CLOSE"
	}
}

// Recommendation grades how aggressively to trade right now given the
// session and weekday.
func Recommendation(t time.Time) string {
	session, _ := ActiveSession(t)
	wd := t.In(JST).Weekday()
	midweek := wd >= time.Tuesday && wd <= time.Thursday
	switch {
	case (session == SessionLondon || session == SessionNewYork) && midweek:
		return "TRADE_ACTIVELY"
	case session == SessionTokyo && (wd == time.Tuesday || wd == time.Wednesday):
		return "TRADE_CAUTIOUSLY"
	default:
		return "WAIT_AND_SEE"
	}
}
