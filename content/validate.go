package content

import (
	"strings"
	"time"
)

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 500
)

// ValidationError lists every problem found in submitted post data.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// ValidatePostData returns one message per problem in in. An empty result
// means the data is acceptable.
func ValidatePostData(in PostInput) []string {
	var problems []string
	problems = append(problems, checkTitle(in.Title)...)
	problems = append(problems, checkDescription(in.Description)...)
	if strings.TrimSpace(in.Content) == "" {
		problems = append(problems, "Content is required")
	}
	problems = append(problems, checkDate(in.Date)...)
	problems = append(problems, checkTags(in.Tags)...)
	return problems
}

// ValidateUpdate checks only the fields present in u.
func ValidateUpdate(u PostUpdate) []string {
	var problems []string
	if u.Title != nil {
		if p := checkTitle(*u.Title); len(p) > 0 {
			problems = append(problems, p...)
		} else if Slugify(*u.Title) == "" {
			problems = append(problems, "Title must contain at least one letter or digit")
		}
	}
	if u.Description != nil {
		problems = append(problems, checkDescription(*u.Description)...)
	}
	if u.Content != nil && strings.TrimSpace(*u.Content) == "" {
		problems = append(problems, "Content is required")
	}
	if u.Date != nil {
		problems = append(problems, checkDate(*u.Date)...)
	}
	if u.Tags != nil {
		problems = append(problems, checkTags(*u.Tags)...)
	}
	return problems
}

func checkTitle(title string) []string {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return []string{"Title is required"}
	case len([]rune(title)) > MaxTitleLen:
		return []string{"Title must be at most 200 characters"}
	}
	return nil
}

func checkDescription(desc string) []string {
	desc = strings.TrimSpace(desc)
	switch {
	case desc == "":
		return []string{"Description is required"}
	case len([]rune(desc)) > MaxDescriptionLen:
		return []string{"Description must be at most 500 characters"}
	}
	return nil
}

func checkDate(date string) []string {
	if strings.TrimSpace(date) == "" {
		return []string{"Date is required"}
	}
	if _, err := ParseDate(date); err != nil {
		return []string{"Invalid date format"}
	}
	return nil
}

func checkTags(tags []string) []string {
	if len(CleanTags(tags)) == 0 {
		return []string{"At least one tag is required"}
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseDate parses the date formats accepted in post frontmatter and forms.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
