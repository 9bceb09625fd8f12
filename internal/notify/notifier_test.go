package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"preservia.dev/silo-core/internal/notify"
	"preservia.dev/silo-core/pkg/mq/mock"
)

var _ = Describe("QueueNotifier", func() {
	var (
		client   *mock.MockClient
		notifier *notify.QueueNotifier
	)

	BeforeEach(func() {
		client = mock.NewMockClient()
		notifier = notify.NewQueueNotifier(client, slog.New(slog.DiscardHandler))
	})

	It("should enqueue a job with the notification fields", func() {
		err := notifier.Send(context.Background(),
			[]string{"token-1", "token-2"},
			"Preservia Alert",
			"temperature exceeded threshold in Silo A",
			map[string]string{"siloId": "1"},
		)
		Expect(err).NotTo(HaveOccurred())

		Expect(client.UnsafePushCalls).To(HaveLen(1))

		var job notify.Job
		Expect(json.Unmarshal(client.UnsafePushCalls[0].Data, &job)).To(Succeed())
		Expect(job.Tokens).To(Equal([]string{"token-1", "token-2"}))
		Expect(job.Title).To(Equal("Preservia Alert"))
		Expect(job.Body).To(Equal("temperature exceeded threshold in Silo A"))
		Expect(job.Data).To(HaveKeyWithValue("siloId", "1"))
	})

	It("should be a no-op with no tokens", func() {
		Expect(notifier.Send(context.Background(), nil, "t", "b", nil)).To(Succeed())
		Expect(client.UnsafePushCalls).To(BeEmpty())
	})

	It("should filter empty tokens", func() {
		err := notifier.Send(context.Background(), []string{"", "token-1", ""}, "t", "b", nil)
		Expect(err).NotTo(HaveOccurred())

		var job notify.Job
		Expect(json.Unmarshal(client.UnsafePushCalls[0].Data, &job)).To(Succeed())
		Expect(job.Tokens).To(Equal([]string{"token-1"}))
	})

	It("should be a no-op when every token is empty", func() {
		Expect(notifier.Send(context.Background(), []string{"", ""}, "t", "b", nil)).To(Succeed())
		Expect(client.UnsafePushCalls).To(BeEmpty())
	})

	It("should propagate enqueue failures", func() {
		client.UnsafePushError = errors.New("not connected")

		err := notifier.Send(context.Background(), []string{"token-1"}, "t", "b", nil)
		Expect(err).To(MatchError(ContainSubstring("not connected")))
	})
})

var _ = Describe("NoopNotifier", func() {
	It("should drop notifications silently", func() {
		var n notify.NoopNotifier
		Expect(n.Send(context.Background(), []string{"token-1"}, "t", "b", nil)).To(Succeed())
	})
})
