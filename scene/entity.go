package scene

import (
	"github.com/samber/lo"
)

// Entity is a shape resident in the backend.
type Entity struct {
	ID       EntityID
	Category Category
}

// registry tracks the entities a building owns in the backend, in upload order.
type registry struct {
	entities []Entity
}

func (r *registry) add(ids []EntityID, category Category) {
	r.entities = append(r.entities, lo.Map(ids, func(id EntityID, _ int) Entity {
		return Entity{ID: id, Category: category}
	})...)
}

func (r *registry) ids() []EntityID {
	return lo.Map(r.entities, func(e Entity, _ int) EntityID { return e.ID })
}

func (r *registry) idsOf(category Category) []EntityID {
	return lo.FilterMap(r.entities, func(e Entity, _ int) (EntityID, bool) {
		return e.ID, e.Category == category
	})
}

func (r *registry) remove(category Category) int {
	before := len(r.entities)
	r.entities = lo.Reject(r.entities, func(e Entity, _ int) bool { return e.Category == category })
	return before - len(r.entities)
}

func (r *registry) count(category Category) int {
	return lo.CountBy(r.entities, func(e Entity) bool { return e.Category == category })
}
