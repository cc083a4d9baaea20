package resolver

import (
	"context"
	"fmt"
	"strings"
)

func tasksGuard(lower string) bool {
	return strings.Contains(lower, "задач") || strings.Contains(lower, "заявк")
}

// resolveTasksByAddress answers "задачи по адресу X".
func resolveTasksByAddress(ctx context.Context, req *Request) *Answer {
	if !tasksGuard(req.Lower) {
		return nil
	}
	st := req.Brain.Store()
	if st == nil {
		return nil
	}
	if req.Entities.Address == "" {
		// A brigade question without an address belongs to the brigade
		// resolver further down the chain.
		if req.Entities.Brigade != "" {
			return nil
		}
		return failure(ErrAddressRequired)
	}

	tasks, err := st.TasksByAddress(ctx, req.Entities.Address)
	if err != nil {
		return failure(ErrNoTasks)
	}
	if len(tasks) == 0 {
		return failure(ErrNoTasks)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Задачи по адресу %s:\n", req.Entities.Address)
	for _, task := range tasks {
		fmt.Fprintf(&b, "— %s [%s]\n", task.Title, task.Status)
	}

	return success(strings.TrimRight(b.String(), "\n"), tasks, nil)
}

// resolveTasksByBrigade answers "задачи бригады N".
func resolveTasksByBrigade(ctx context.Context, req *Request) *Answer {
	if !tasksGuard(req.Lower) || !strings.Contains(req.Lower, "бригад") {
		return nil
	}
	st := req.Brain.Store()
	if st == nil {
		return nil
	}
	if req.Entities.Brigade == "" {
		return failure(ErrBrigadeNotSpecified)
	}

	tasks, err := st.TasksByBrigade(ctx, req.Entities.Brigade+" бригада")
	if err != nil {
		return failure(ErrNoTasks)
	}
	if len(tasks) == 0 {
		return failure(ErrNoTasks)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Задачи бригады %s:\n", req.Entities.Brigade)
	for _, task := range tasks {
		fmt.Fprintf(&b, "— %s [%s] (%s)\n", task.Title, task.Status, task.Address)
	}

	return success(strings.TrimRight(b.String(), "\n"), tasks, nil)
}
