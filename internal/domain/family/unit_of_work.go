package family

import "context"

type stagedWrite func(ctx context.Context, tx Repository) error

// unitOfWork collects the writes of one workflow step and applies them in a
// single transaction. Nothing touches the store before commit.
type unitOfWork struct {
	repo        Repository
	writes      []stagedWrite
	afterCommit []func(ctx context.Context)
}

func newUnitOfWork(repo Repository) *unitOfWork {
	return &unitOfWork{repo: repo}
}

func (u *unitOfWork) stage(write stagedWrite) {
	u.writes = append(u.writes, write)
}

func (u *unitOfWork) onCommit(fn func(ctx context.Context)) {
	u.afterCommit = append(u.afterCommit, fn)
}

func (u *unitOfWork) commit(ctx context.Context) error {
	if len(u.writes) == 0 {
		return nil
	}

	err := u.repo.Transaction(ctx, func(tx Repository) error {
		for _, write := range u.writes {
			if err := write(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, fn := range u.afterCommit {
		fn(ctx)
	}
	return nil
}
