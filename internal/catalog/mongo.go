package catalog

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/quickbites/challenge-engine/internal/domain"
)

// MongoCatalog reads the chess_puzzles collection the seed scripts curate.
type MongoCatalog struct {
	collection *mongo.Collection
}

func NewMongoCatalog(client *mongo.Client, database string) *MongoCatalog {
	return &MongoCatalog{collection: client.Database(database).Collection("chess_puzzles")}
}

func (c *MongoCatalog) RandomByDifficulty(ctx context.Context, difficulty domain.Difficulty) (*domain.Puzzle, error) {
	filter := bson.M{
		"difficulty":     string(difficulty),
		"solution_moves": bson.M{"$exists": true, "$type": "array"},
	}
	cur, err := c.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find puzzles: %w", err)
	}
	defer cur.Close(ctx)

	var pool []*domain.Puzzle
	for cur.Next(ctx) {
		var doc puzzleDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode puzzle: %w", err)
		}
		p := doc.toDomain()
		// The query filter cannot express the default-position check;
		// finish filtering here.
		if Playable(p) {
			pool = append(pool, p)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoPuzzleAvailable
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return nil, err
	}
	return pool[n.Int64()], nil
}

func (c *MongoCatalog) Get(ctx context.Context, id string) (*domain.Puzzle, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrPuzzleNotFound
	}
	var doc puzzleDoc
	err = c.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrPuzzleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find puzzle %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

type puzzleDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	FEN           string             `bson:"fen"`
	SolutionMoves []string           `bson:"solution_moves"`
	Difficulty    string             `bson:"difficulty"`
	Category      string             `bson:"puzzle_type"`
	Hint          string             `bson:"hint"`
	Description   string             `bson:"description"`
}

func (d *puzzleDoc) toDomain() *domain.Puzzle {
	return &domain.Puzzle{
		ID:            d.ID.Hex(),
		FEN:           d.FEN,
		SolutionMoves: append([]string(nil), d.SolutionMoves...),
		Difficulty:    domain.Difficulty(d.Difficulty),
		Category:      domain.PuzzleCategory(d.Category),
		Hint:          d.Hint,
		Description:   d.Description,
	}
}
