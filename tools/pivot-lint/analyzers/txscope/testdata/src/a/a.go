package a

import "context"

type Store interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	SaveAssociation(ctx context.Context, left, right string) error
	DeleteAssociation(ctx context.Context, left, right string) error
}

type service struct {
	db Store
}

func (s *service) bad(ctx context.Context) error {
	return s.db.WithinTx(ctx, func(tx Store) error {
		if err := tx.SaveAssociation(ctx, "A1", "B101"); err != nil {
			return err
		}
		return s.db.DeleteAssociation(ctx, "A1", "B102") // want "s.db.DeleteAssociation called inside WithinTx runs outside the transaction, use tx"
	})
}

func (s *service) good(ctx context.Context) error {
	if err := s.db.SaveAssociation(ctx, "A1", "B100"); err != nil {
		return err
	}
	return s.db.WithinTx(ctx, func(inner Store) error {
		return inner.DeleteAssociation(ctx, "A1", "B101")
	})
}
