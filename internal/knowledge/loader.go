// Package knowledge loads the portfolio owner's profile and project list.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"portfolio-chat/internal/domain"
	"portfolio-chat/internal/integrations/paramstore"
)

// Loader reads knowledge sources. A source is a file path or an "ssm:"
// parameter reference.
type Loader struct {
	params paramstore.Getter
}

// NewLoader returns a Loader. params may be nil when no source is an "ssm:"
// reference.
func NewLoader(params paramstore.Getter) *Loader {
	return &Loader{params: params}
}

// Load never fails. A source that cannot be read or parsed yields the empty
// value of its shape and a warning.
func (l *Loader) Load(ctx context.Context, profileRef, projectsRef string) domain.Knowledge {
	k := domain.Knowledge{
		Profile:  l.profile(ctx, profileRef),
		Projects: l.projects(ctx, projectsRef),
	}
	slog.Info("knowledge loaded",
		"profile_name", k.Profile.Name,
		"projects", len(k.Projects),
	)
	return k
}

func (l *Loader) profile(ctx context.Context, ref string) domain.PersonalInfo {
	var p domain.PersonalInfo
	if err := l.decode(ctx, ref, &p); err != nil {
		slog.Warn("could not load profile", "source", ref, "err", err)
		return domain.PersonalInfo{}
	}
	return p
}

func (l *Loader) projects(ctx context.Context, ref string) []domain.ProjectRecord {
	data, err := paramstore.ReadSource(ctx, l.params, ref)
	if err != nil {
		slog.Warn("could not load projects", "source", ref, "err", err)
		return []domain.ProjectRecord{}
	}
	projects, err := parseProjects(data)
	if err != nil {
		slog.Warn("could not load projects", "source", ref, "err", err)
		return []domain.ProjectRecord{}
	}
	return projects
}

func (l *Loader) decode(ctx context.Context, ref string, v any) error {
	data, err := paramstore.ReadSource(ctx, l.params, ref)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("knowledge: decode %s: %w", ref, err)
	}
	return nil
}

// parseProjects accepts either a JSON array of projects or an object with a
// "projects" array.
func parseProjects(data []byte) ([]domain.ProjectRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Projects []domain.ProjectRecord `json:"projects"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("knowledge: decode projects: %w", err)
		}
		if wrapped.Projects == nil {
			return []domain.ProjectRecord{}, nil
		}
		return wrapped.Projects, nil
	}
	var projects []domain.ProjectRecord
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("knowledge: decode projects: %w", err)
	}
	if projects == nil {
		projects = []domain.ProjectRecord{}
	}
	return projects, nil
}
