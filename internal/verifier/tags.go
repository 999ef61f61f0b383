package verifier

import (
	"strings"

	"github.com/lynkerai/truechart/internal/storage/models"
)

var (
	studyAbroadMarkers = []string{"留学", "海外", "study abroad", "studied abroad", "overseas"}
	accidentMarkers    = []string{"病", "伤", "illness", "injury", "accident", "surgery", "hospital"}
)

// DeriveTags summarizes the profile independent of chart matching. Matched
// and unmatched events alike contribute; the tags describe the life, not the
// verification outcome.
func DeriveTags(profile *models.LifeProfile) models.DerivedTags {
	tags := models.DerivedTags{
		CareerType:     profile.CareerType,
		MarriageStatus: profile.MarriageStatus,
		Children:       profile.Children,
	}

	for _, ev := range profile.Events {
		desc := strings.ToLower(ev.Description)

		if !tags.StudyAbroad && containsAny(desc, studyAbroadMarkers) {
			tags.StudyAbroad = true
		}
		if tags.MajorAccident == nil && containsAny(desc, accidentMarkers) {
			d := ev.Description
			tags.MajorAccident = &d
		}
	}

	return tags
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
