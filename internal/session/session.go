// Package session keeps per-chat conversation state for the goal-creation
// dialogue.
package session

import (
	"strconv"
	"strings"

	"github.com/kamir/goalbot/internal/domain"
)

// Stage is the position of a chat in the goal-creation dialogue.
type Stage int

const (
	StageIdle Stage = iota
	StageAwaitingCategory
	StageAwaitingTitle
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAwaitingCategory:
		return "awaiting_category"
	case StageAwaitingTitle:
		return "awaiting_title"
	default:
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
}

// Session is the full state of one chat. The zero value is Idle.
type Session struct {
	Stage Stage
	// Candidates are the categories offered by /create, in display order.
	Candidates       []domain.Category
	ChosenCategoryID int64
}

// Candidate returns the offered category whose id equals text.
func (s Session) Candidate(text string) (domain.Category, bool) {
	text = strings.TrimSpace(text)
	for _, c := range s.Candidates {
		if strconv.FormatInt(c.ID, 10) == text {
			return c, true
		}
	}
	return domain.Category{}, false
}

// CandidateIDs returns the offered category ids as strings.
func (s Session) CandidateIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Candidates))
	for _, c := range s.Candidates {
		ids[strconv.FormatInt(c.ID, 10)] = struct{}{}
	}
	return ids
}

func (s Session) clone() Session {
	s.Candidates = append([]domain.Category(nil), s.Candidates...)
	return s
}
