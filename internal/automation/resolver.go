package automation

import (
	"context"
	"errors"
	"fmt"
)

// SceneLookup is the subset of the scene repository the resolver needs.
type SceneLookup interface {
	GetByID(ctx context.Context, id string) (*Scene, error)
	GetByName(ctx context.Context, name string) (*Scene, error)
}

// Resolve expands a rule's action list into a flat, ordered list of
// device commands.
//
// Scene references are looked up by ID first, then by name; the fallback
// preserves dual addressing, so a rule may reference a scene by either
// form. A reference that resolves to nothing is silently dropped rather
// than failing the rule, so the output may be empty when every reference
// dangles. Direct device actions pass through verbatim.
//
// Repository failures other than not-found abort resolution.
func Resolve(ctx context.Context, actions []ActionSpec, scenes SceneLookup) ([]ActionCommand, error) {
	commands := make([]ActionCommand, 0, len(actions))

	for _, spec := range actions {
		if spec.SceneID == "" {
			commands = append(commands, ActionCommand{
				DeviceID: spec.DeviceID,
				Action:   spec.Action,
				State:    spec.State,
			})
			continue
		}

		scene, err := lookupScene(ctx, spec.SceneID, scenes)
		if err != nil {
			if errors.Is(err, ErrSceneNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolving scene %q: %w", spec.SceneID, err)
		}

		for _, dev := range scene.Devices {
			commands = append(commands, ActionCommand{
				DeviceID: dev.DeviceID,
				Action:   "set_state",
				State:    dev.State,
			})
		}
	}

	return commands, nil
}

// lookupScene resolves a scene reference by ID, falling back to a name
// lookup when the identifier form does not resolve.
func lookupScene(ctx context.Context, ref string, scenes SceneLookup) (*Scene, error) {
	scene, err := scenes.GetByID(ctx, ref)
	if err == nil {
		return scene, nil
	}
	if !errors.Is(err, ErrSceneNotFound) {
		return nil, err
	}
	return scenes.GetByName(ctx, ref)
}
