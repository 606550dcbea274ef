package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jameshartig/gridpilot/pkg/types"
)

const (
	decisionsCollection = "decisions"
	profileCollection   = "profile"
	profileDocID        = "current"
	settingsCollection  = "settings"
	settingsDocID       = "current"
)

// firestoreStore implements Store against Firestore: one document per
// decision in the decisions collection, and a single document holding the
// latest usage profile.
type firestoreStore struct {
	client *firestore.Client
}

func newFirestoreStore(ctx context.Context, projectID string) (*firestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("storage: firestore client: %w", err)
	}
	return &firestoreStore{client: client}, nil
}

type decisionDoc struct {
	Timestamp          time.Time              `firestore:"timestamp"`
	Action             string                 `firestore:"action"`
	PowerKW            float64                `firestore:"powerKw"`
	Reason             string                 `firestore:"reason"`
	Confidence         float64                `firestore:"confidence"`
	ExpectedValueCents float64                `firestore:"expectedValueCents"`
	Factors            map[string]interface{} `firestore:"factors"`
}

func (s *firestoreStore) RecordDecision(ctx context.Context, d types.Decision) error {
	doc := decisionDoc{
		Timestamp:          d.Timestamp,
		Action:             d.Action.String(),
		PowerKW:            d.PowerKW,
		Reason:             d.Reason,
		Confidence:         d.Confidence,
		ExpectedValueCents: d.ExpectedValueCents,
		Factors:            d.Factors,
	}
	_, _, err := s.client.Collection(decisionsCollection).Add(ctx, doc)
	if err != nil {
		return fmt.Errorf("storage: add decision: %w", err)
	}
	return nil
}

func (s *firestoreStore) DecisionHistory(ctx context.Context, start, end time.Time) ([]types.Decision, error) {
	iter := s.client.Collection(decisionsCollection).
		Where("timestamp", ">=", start).
		Where("timestamp", "<", end).
		OrderBy("timestamp", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var decisions []types.Decision
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: query decisions: %w", err)
		}
		var doc decisionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("storage: decode decision: %w", err)
		}
		decisions = append(decisions, types.Decision{
			Timestamp:          doc.Timestamp,
			Action:             parseAction(doc.Action),
			PowerKW:            doc.PowerKW,
			Reason:             doc.Reason,
			Confidence:         doc.Confidence,
			ExpectedValueCents: doc.ExpectedValueCents,
			Factors:            doc.Factors,
		})
	}
	return decisions, nil
}

func (s *firestoreStore) SaveProfile(ctx context.Context, p types.UsageProfile) error {
	_, err := s.client.Collection(profileCollection).Doc(profileDocID).Set(ctx, p)
	if err != nil {
		return fmt.Errorf("storage: save profile: %w", err)
	}
	return nil
}

func (s *firestoreStore) LoadProfile(ctx context.Context) (types.UsageProfile, error) {
	snap, err := s.client.Collection(profileCollection).Doc(profileDocID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return types.UsageProfile{}, nil
	}
	if err != nil {
		return types.UsageProfile{}, fmt.Errorf("storage: load profile: %w", err)
	}
	var p types.UsageProfile
	if err := snap.DataTo(&p); err != nil {
		return types.UsageProfile{}, fmt.Errorf("storage: decode profile: %w", err)
	}
	return p, nil
}

func (s *firestoreStore) SaveSettings(ctx context.Context, rs types.RuntimeSettings) error {
	_, err := s.client.Collection(settingsCollection).Doc(settingsDocID).Set(ctx, rs)
	if err != nil {
		return fmt.Errorf("storage: save settings: %w", err)
	}
	return nil
}

func (s *firestoreStore) LoadSettings(ctx context.Context) (types.RuntimeSettings, error) {
	snap, err := s.client.Collection(settingsCollection).Doc(settingsDocID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return types.RuntimeSettings{}, nil
	}
	if err != nil {
		return types.RuntimeSettings{}, fmt.Errorf("storage: load settings: %w", err)
	}
	var rs types.RuntimeSettings
	if err := snap.DataTo(&rs); err != nil {
		return types.RuntimeSettings{}, fmt.Errorf("storage: decode settings: %w", err)
	}
	return rs, nil
}

func (s *firestoreStore) Close() error {
	return s.client.Close()
}
