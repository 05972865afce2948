package domain

import "encoding/json"

// PersonalInfo is the portfolio owner's profile.
type PersonalInfo struct {
	Name    string              `json:"name"`
	Title   string              `json:"title"`
	Summary string              `json:"summary"`
	Skills  map[string][]string `json:"skills"`
	Contact map[string]string   `json:"contact"`
}

// IsEmpty reports whether no profile field was loaded.
func (p PersonalInfo) IsEmpty() bool {
	return p.Name == "" && p.Title == "" && p.Summary == "" && len(p.Skills) == 0
}

// ProjectRecord describes one portfolio project.
type ProjectRecord struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Link         string   `json:"link,omitempty"`
	Highlights   []string `json:"highlights,omitempty"`
}

// UnmarshalJSON also accepts the "title" and "github_link" keys used by
// older project data files.
func (p *ProjectRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name         string   `json:"name"`
		Title        string   `json:"title"`
		Description  string   `json:"description"`
		Technologies []string `json:"technologies"`
		Link         string   `json:"link"`
		GithubLink   string   `json:"github_link"`
		Highlights   []string `json:"highlights"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ProjectRecord{
		Name:         raw.Name,
		Description:  raw.Description,
		Technologies: raw.Technologies,
		Link:         raw.Link,
		Highlights:   raw.Highlights,
	}
	if p.Name == "" {
		p.Name = raw.Title
	}
	if p.Link == "" {
		p.Link = raw.GithubLink
	}
	return nil
}

// Knowledge is the static data loaded once at startup.
type Knowledge struct {
	Profile  PersonalInfo
	Projects []ProjectRecord
}
