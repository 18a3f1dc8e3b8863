package a

import "context"

type Store interface {
	FindEntity(ctx context.Context, collection, id string) (any, error)
	FindAssociation(ctx context.Context, pivot, left, right string) (any, error)
	EntitiesExist(ctx context.Context, collection string, ids []string) ([]string, error)
}

func bad(ctx context.Context, ids []string, db Store) {
	for _, id := range ids {
		db.FindEntity(ctx, "students", id)              // want "potential N\\+1: FindEntity called inside loop, use EntitiesExist"
		db.FindAssociation(ctx, "enrollments", "A1", id) // want "potential N\\+1: FindAssociation called inside loop"
	}
	for i := 0; i < len(ids); i++ {
		for _, id := range ids {
			db.FindEntity(ctx, "courses", id) // want "potential N\\+1: FindEntity called inside loop"
		}
	}
}

func good(ctx context.Context, ids []string, db Store) {
	db.EntitiesExist(ctx, "students", ids)
	for _, id := range ids {
		_ = len(id)
	}
}
