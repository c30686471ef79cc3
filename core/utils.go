package core

import (
	"reflect"
	"regexp"
	"time"

	"github.com/aramidnet/aramid/state"
)

func Get[T state.Module](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}

func compileRegexes(regexes []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(regexes))
	for _, re := range regexes {
		c, err := regexp.Compile(re)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func matchAny(regexes []*regexp.Regexp, s string) bool {
	for _, re := range regexes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// metricFromRtt derives a link metric from measured round-trip time, one
// unit per RttMetricDivisor microseconds, floored at 1.
func metricFromRtt(rtt time.Duration) uint32 {
	m := rtt.Microseconds() / state.RttMetricDivisor
	if m < 1 {
		m = 1
	}
	return uint32(m)
}

// qput publishes to an outbound queue, giving up on shutdown.
func qput[T any](e *state.Env, ch chan T, v T) {
	select {
	case ch <- v:
	case <-e.Context.Done():
	}
}
