package store

import (
	"context"
	"testing"

	"github.com/goliatone/go-fitsync/entity"
	"github.com/google/uuid"
)

type stubCollection struct{ t entity.Type }

func (s stubCollection) Type() entity.Type { return s.t }
func (s stubCollection) Create(context.Context, entity.Entity) (entity.Entity, error) {
	return nil, nil
}
func (s stubCollection) GetByID(context.Context, uuid.UUID) (entity.Entity, error) { return nil, nil }
func (s stubCollection) Update(context.Context, uuid.UUID, entity.Patch) (entity.Entity, error) {
	return nil, nil
}
func (s stubCollection) Delete(context.Context, uuid.UUID) error { return nil }
func (s stubCollection) List(context.Context, Query) ([]entity.Entity, error) {
	return nil, nil
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(stubCollection{entity.TypeWorkout}, stubCollection{entity.TypeGoal})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := r.Collection(entity.TypeGoal); err != nil {
		t.Errorf("expected goals collection, got %v", err)
	}
	if _, err := r.Collection(entity.TypeBMI); err == nil {
		t.Error("expected error for unregistered type")
	}

	types := r.Types()
	if len(types) != 2 || types[0] != entity.TypeGoal || types[1] != entity.TypeWorkout {
		t.Errorf("expected sorted [goals workouts], got %v", types)
	}
}

func TestNewRegistry_Errors(t *testing.T) {
	tests := []struct {
		name string
		cols []Collection
	}{
		{"nil collection", []Collection{nil}},
		{"unknown type", []Collection{stubCollection{entity.Type("meals")}}},
		{"duplicate type", []Collection{stubCollection{entity.TypeBMI}, stubCollection{entity.TypeBMI}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.cols...); err == nil {
				t.Error("expected error")
			}
		})
	}
}
