package matching

import "strings"

// ParseSkills splits a comma-separated skill list into trimmed, lower-cased,
// non-empty tokens. Duplicates are kept in input order.
func ParseSkills(csv string) []string {
	parts := strings.Split(csv, ",")
	skills := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			continue
		}
		skills = append(skills, token)
	}
	return skills
}

func skillSet(csv string) map[string]struct{} {
	tokens := ParseSkills(csv)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// SkillOverlap returns the share of the job's distinct required skills present
// in the candidate's skills, on a 0-100 scale. A job without requirements
// scores 0.
func SkillOverlap(candidateCSV, jobCSV string) float64 {
	required := skillSet(jobCSV)
	if len(required) == 0 {
		return 0
	}

	have := skillSet(candidateCSV)
	matched := 0
	for skill := range required {
		if _, ok := have[skill]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(required)) * 100
}
