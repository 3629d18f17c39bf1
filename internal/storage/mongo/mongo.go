// Package mongo provides a MongoDB-backed implementation of the storage.Store interface.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/storage"
)

var _ storage.Store = (*MongoStore)(nil)

const (
	usersCollection    = "users"
	expensesCollection = "expenses"
)

// MongoStore implements storage.Store on a MongoDB database.
// Amounts are stored as Decimal128 and dates as YYYY-MM-DD strings so that
// range filters compare lexically.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	expenses *mongo.Collection
}

type userDoc struct {
	ID           string `bson:"_id"`
	Username     string `bson:"username"`
	PasswordHash string `bson:"password_hash"`
	CreatedAt    int64  `bson:"created_at"`
}

type expenseDoc struct {
	ID          string               `bson:"_id"`
	OwnerID     string               `bson:"owner_id"`
	Amount      primitive.Decimal128 `bson:"amount"`
	Category    string               `bson:"category"`
	Description string               `bson:"description"`
	Date        string               `bson:"date"`
	CreatedAt   int64                `bson:"created_at"`
	UpdatedAt   int64                `bson:"updated_at"`
}

// New connects to uri, selects database and ensures indexes exist.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		users:    db.Collection(usersCollection),
		expenses: db.Collection(expensesCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create username index: %w", err)
	}
	_, err = s.expenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create expense index: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	user.Username = models.NormalizeUsername(user.Username)
	if err := user.Validate(); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	_, err := s.users.InsertOne(ctx, userDoc{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": models.NormalizeUsername(username)})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toModel(), nil
}

// DeleteUser removes the user first so no new expense can be attached,
// then removes their expenses.
func (s *MongoStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	if _, err := s.expenses.DeleteMany(ctx, bson.M{"owner_id": id}); err != nil {
		return fmt.Errorf("failed to delete user expenses: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := storage.PrepareExpense(expense); err != nil {
		return err
	}
	n, err := s.users.CountDocuments(ctx, bson.M{"_id": expense.OwnerID})
	if err != nil {
		return fmt.Errorf("failed to check owner: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.UpdatedAt == 0 {
		expense.UpdatedAt = expense.CreatedAt
	}

	doc, err := newExpenseDoc(expense)
	if err != nil {
		return err
	}
	if _, err := s.expenses.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (s *MongoStore) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	var doc expenseDoc
	err := s.expenses.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return doc.toModel()
}

func (s *MongoStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if err := storage.PrepareExpense(expense); err != nil {
		return err
	}
	amount, err := primitive.ParseDecimal128(expense.Amount.String())
	if err != nil {
		return apperr.Invalid("amount", "cannot be stored: %v", err)
	}
	expense.UpdatedAt = time.Now().Unix()

	var doc expenseDoc
	err = s.expenses.FindOneAndUpdate(ctx,
		bson.M{"_id": expense.ID},
		bson.M{"$set": bson.M{
			"amount":      amount,
			"category":    expense.Category,
			"description": expense.Description,
			"date":        expense.Date.String(),
			"updated_at":  expense.UpdatedAt,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	expense.OwnerID = doc.OwnerID
	expense.CreatedAt = doc.CreatedAt
	return nil
}

func (s *MongoStore) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.expenses.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListExpenses(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error) {
	return s.findExpenses(ctx, expenseQuery(filter))
}

// Snapshot reads users, then only the expenses of those users. A standalone
// server has no multi-document read transaction; restricting the second read
// to the first read's owners keeps a user created in between from showing up
// as an orphan.
func (s *MongoStore) Snapshot(ctx context.Context, q storage.SnapshotQuery) (*storage.Snapshot, error) {
	userFilter := bson.M{}
	if q.OwnerID != "" {
		userFilter["_id"] = q.OwnerID
	}
	cur, err := s.users.Find(ctx, userFilter, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	snap := &storage.Snapshot{}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		snap.Users = append(snap.Users, *d.toModel())
		ids = append(ids, d.ID)
	}
	if len(ids) == 0 {
		return snap, nil
	}

	filter := expenseQuery(models.ExpenseFilter{Period: q.Period})
	filter["owner_id"] = bson.M{"$in": ids}
	snap.Expenses, err = s.findExpenses(ctx, filter)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func expenseQuery(filter models.ExpenseFilter) bson.M {
	q := bson.M{}
	if filter.OwnerID != "" {
		q["owner_id"] = filter.OwnerID
	}
	if filter.Category != "" {
		q["category"] = models.NormalizeCategory(filter.Category)
	}
	date := bson.M{}
	if !filter.Period.From.IsZero() {
		date["$gte"] = filter.Period.From.String()
	}
	if !filter.Period.To.IsZero() {
		date["$lte"] = filter.Period.To.String()
	}
	if len(date) > 0 {
		q["date"] = date
	}
	return q
}

func (s *MongoStore) findExpenses(ctx context.Context, filter bson.M) ([]models.Expense, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: -1},
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	})
	cur, err := s.expenses.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	var docs []expenseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode expenses: %w", err)
	}

	expenses := make([]models.Expense, 0, len(docs))
	for _, d := range docs {
		e, err := d.toModel()
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, nil
}

func (d userDoc) toModel() *models.User {
	return &models.User{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

func newExpenseDoc(e *models.Expense) (expenseDoc, error) {
	amount, err := primitive.ParseDecimal128(e.Amount.String())
	if err != nil {
		return expenseDoc{}, apperr.Invalid("amount", "cannot be stored: %v", err)
	}
	return expenseDoc{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Amount:      amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date.String(),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}, nil
}

func (d expenseDoc) toModel() (*models.Expense, error) {
	amount, err := decimal.NewFromString(d.Amount.String())
	if err != nil {
		return nil, apperr.Integrity("expense %s has unreadable amount %q", d.ID, d.Amount.String())
	}
	date, err := models.ParseDate(d.Date)
	if err != nil {
		return nil, apperr.Integrity("expense %s has unreadable date %q", d.ID, d.Date)
	}
	return &models.Expense{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Amount:      amount,
		Category:    d.Category,
		Description: d.Description,
		Date:        date,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}
