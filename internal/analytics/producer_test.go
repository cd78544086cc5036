package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestProducer_PublishesJSONEvent(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Type != EVENT_ROLE_SWAP || ev.SessionID != "s-1" {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			return errors.New("timestamp should be filled")
		}
		return nil
	})

	p := NewProducerWith(mock, "pacman-events")

	if err := p.Publish(RoleSwapEvent("s-1", 0, 3)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestProducer_ReportsSendFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerWith(mock, "pacman-events")

	err := p.Publish(PlayerJoinEvent("s-1", "alice"))
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("want ErrOutOfBrokers got %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestEmit_ToleratesNilAndNop(t *testing.T) {
	Emit(nil, PlayerJoinEvent("s", "a"))
	Emit(Nop{}, PlayerJoinEvent("s", "a"))
}
