//go:build integration

package reciprocal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"caredesk/internal/beneficiary/models"
	"caredesk/internal/beneficiary/reciprocal"
	"caredesk/internal/beneficiary/store"
	id "caredesk/pkg/domain"
	"caredesk/pkg/testutil/containers"
)

type KafkaSuite struct {
	suite.Suite
	kafka *containers.KafkaContainer
}

func TestKafkaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
}

// TestDeliveredTwiceWritesOnce publishes the same task twice and verifies the
// consumer leaves a single reciprocal edge on the target.
func (s *KafkaSuite) TestDeliveredTwiceWritesOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	topic := "reciprocal-" + id.NewBeneficiaryID().String()

	producer, err := kgo.NewClient(kgo.SeedBrokers(s.kafka.Brokers...))
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(reciprocal.EnsureTopic(ctx, kadm.NewClient(producer), topic, 1, 1))
	s.Require().NoError(reciprocal.EnsureTopic(ctx, kadm.NewClient(producer), topic, 1, 1), "ensure is idempotent")

	beneficiaries := store.NewInMemory()
	target, err := models.NewBeneficiary(id.NewBeneficiaryID(), id.NewBranchID(), "Branch", models.Profile{
		Name: "Hassan", InternalNumber: "1", Priority: 5,
		Marital: models.Unmarried{}, Health: models.Healthy{},
	}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(beneficiaries.Insert(ctx, target))

	child := id.NewBeneficiaryID()
	task := reciprocal.Task{
		TargetID: target.ID,
		BranchID: target.BranchID,
		Edge: models.RelationshipEdge{
			RelationType: models.RelationChild, RelativeName: "Layla", LinkedBeneficiaryID: &child, Reciprocal: true,
		},
	}
	dispatcher := reciprocal.NewKafkaDispatcher(producer, topic, nil)
	s.Require().NoError(dispatcher.Dispatch(ctx, []reciprocal.Task{task, task}))

	consumerClient, err := kgo.NewClient(append(
		[]kgo.Opt{kgo.SeedBrokers(s.kafka.Brokers...)},
		reciprocal.ConsumerOpts("caredesk-test", topic)...,
	)...)
	s.Require().NoError(err)
	defer consumerClient.Close()

	consumer := reciprocal.NewConsumer(consumerClient, reciprocal.NewApplier(beneficiaries))
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Run(runCtx) }()

	s.Eventually(func() bool {
		b, err := beneficiaries.FindByID(ctx, target.ID)
		return err == nil && len(b.Relationships) == 1
	}, 30*time.Second, 100*time.Millisecond)

	// Give the duplicate time to be consumed, then verify it was absorbed.
	time.Sleep(time.Second)
	stop()
	<-done

	b, err := beneficiaries.FindByID(ctx, target.ID)
	s.Require().NoError(err)
	s.Len(b.Relationships, 1)
}
