package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// OrderFilter captures the predicates a listing may combine. Nil/empty
// members contribute no clause; set members are ANDed together.
type OrderFilter struct {
	CreatedByID *string
	Search      string
	Status      *domain.OrderStatus
	Priority    *domain.OrderPriority
}

// WorkOrderRepository encapsulates work order persistence.
type WorkOrderRepository interface {
	Create(ctx context.Context, order *domain.WorkOrder) error
	Update(ctx context.Context, order *domain.WorkOrder) error
	GetByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	List(ctx context.Context, filter OrderFilter, limit, offset int) ([]domain.WorkOrder, error)
	Count(ctx context.Context, filter OrderFilter) (int, error)
}

type workOrderRepository struct {
	pool *pgxpool.Pool
}

// NewWorkOrderRepository instantiates repository.
func NewWorkOrderRepository(pool *pgxpool.Pool) WorkOrderRepository {
	return &workOrderRepository{pool: pool}
}

const orderColumns = `
        o.id, o.title, o.description, o.status, o.priority,
        o.created_by_id, o.assigned_to_id, o.image_url, o.image_name,
        o.created_at, o.updated_at,
        c.id, c.name, c.email, c.role,
        a.id, a.name, a.email, a.role`

const orderJoins = `
        FROM work_orders o
        JOIN users c ON c.id = o.created_by_id
        LEFT JOIN users a ON a.id = o.assigned_to_id`

func (r *workOrderRepository) Create(ctx context.Context, order *domain.WorkOrder) error {
	const query = `
        INSERT INTO work_orders (id, title, description, status, priority, created_by_id, assigned_to_id, image_url, image_name)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		order.ID,
		order.Title,
		order.Description,
		order.Status,
		order.Priority,
		order.CreatedByID,
		order.AssignedToID,
		order.ImageURL,
		order.ImageName,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
}

func (r *workOrderRepository) Update(ctx context.Context, order *domain.WorkOrder) error {
	const query = `
        UPDATE work_orders SET title=$1, description=$2, status=$3, priority=$4,
            assigned_to_id=$5, image_url=$6, image_name=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		order.Title,
		order.Description,
		order.Status,
		order.Priority,
		order.AssignedToID,
		order.ImageURL,
		order.ImageName,
		order.ID,
	).Scan(&order.UpdatedAt)
}

func (r *workOrderRepository) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	query := `SELECT ` + orderColumns + orderJoins + ` WHERE o.id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *workOrderRepository) List(ctx context.Context, filter OrderFilter, limit, offset int) ([]domain.WorkOrder, error) {
	where, args := BuildWhere(filter)
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY o.created_at DESC, o.id ASC LIMIT %d OFFSET %d`,
		orderColumns, orderJoins, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *workOrderRepository) Count(ctx context.Context, filter OrderFilter) (int, error) {
	where, args := BuildWhere(filter)
	query := `SELECT COUNT(*) FROM work_orders o WHERE ` + where

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// BuildWhere renders the filter into a WHERE fragment with positional args.
// Exported so the generated SQL stays testable without a database.
func BuildWhere(filter OrderFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedByID != nil {
		args = append(args, *filter.CreatedByID)
		clauses = append(clauses, fmt.Sprintf("o.created_by_id=$%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(o.title) LIKE %s OR LOWER(o.description) LIKE %s)", placeholder, placeholder))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("o.status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("o.priority=$%d", len(args)))
	}

	return strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.WorkOrder, error) {
	var (
		order         domain.WorkOrder
		creator       domain.User
		assigneeID    *string
		assigneeName  *string
		assigneeEmail *string
		assigneeRole  *domain.Role
	)
	if err := row.Scan(
		&order.ID,
		&order.Title,
		&order.Description,
		&order.Status,
		&order.Priority,
		&order.CreatedByID,
		&order.AssignedToID,
		&order.ImageURL,
		&order.ImageName,
		&order.CreatedAt,
		&order.UpdatedAt,
		&creator.ID,
		&creator.Name,
		&creator.Email,
		&creator.Role,
		&assigneeID,
		&assigneeName,
		&assigneeEmail,
		&assigneeRole,
	); err != nil {
		return nil, err
	}
	order.CreatedBy = &creator
	if assigneeID != nil {
		order.AssignedTo = &domain.User{
			ID:    *assigneeID,
			Name:  assigneeName,
			Email: *assigneeEmail,
			Role:  *assigneeRole,
		}
	}
	return &order, nil
}

func scanOrders(rows pgx.Rows) ([]domain.WorkOrder, error) {
	var result []domain.WorkOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *order)
	}
	return result, rows.Err()
}
