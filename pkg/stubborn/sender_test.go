package stubborn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seq(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i + 1)
	}
	return out
}

func TestSenderSubmit(t *testing.T) {
	s := New(4)
	require.NoError(t, s.Submit(seq(10), 3))
	require.Equal(t, Sending, s.State())

	s = New(3)
	require.Equal(t, ErrTooLarge, s.Submit(seq(10), 3))
	require.Equal(t, Idle, s.State())
	idx, data := s.CurrentPayload()
	require.Zero(t, idx)
	require.Nil(t, data)

	require.Equal(t, ErrChunkSize, s.Submit(seq(1), 0))
	require.False(t, s.Active())
}

func TestSenderRejectKeepsTransfer(t *testing.T) {
	s := New(4)
	require.NoError(t, s.Submit(seq(4), 2))
	s.Confirm(true)
	require.Equal(t, ErrTooLarge, s.Submit(seq(40), 2))
	require.Equal(t, Sending, s.State())
	idx, data := s.CurrentPayload()
	require.Equal(t, byte(2), idx)
	require.Equal(t, []byte{3, 4}, data)
}

func TestSenderComplete(t *testing.T) {
	s := New(14)
	payload := seq(10)
	require.NoError(t, s.Submit(payload, 3))

	expected := []struct {
		idx  byte
		data []byte
	}{
		{1, payload[0:3]},
		{2, payload[3:6]},
		{3, payload[6:9]},
		{4, payload[9:10]},
	}
	bit := true
	for _, e := range expected {
		require.Equal(t, Sending, s.State())
		idx, data := s.CurrentPayload()
		require.Equal(t, e.idx, idx)
		require.Equal(t, e.data, data)
		// a stale bit does not advance
		s.Confirm(!bit)
		idx, _ = s.CurrentPayload()
		require.Equal(t, e.idx, idx)
		s.Confirm(bit)
		bit = !bit
	}
	require.Equal(t, WaitUntilNextConfirm, s.State())
	idx, data := s.CurrentPayload()
	require.Zero(t, idx)
	require.Nil(t, data)

	s.Confirm(!bit)
	require.Equal(t, WaitUntilNextConfirm, s.State())
	s.Confirm(bit)
	require.Equal(t, Idle, s.State())
}

func TestSenderResync(t *testing.T) {
	s := New(14)
	require.NoError(t, s.Submit(seq(10), 3))
	for i := 0; i < s.MaxWaitCount(); i++ {
		s.Confirm(false)
	}
	require.Equal(t, Sending, s.State())
	s.Confirm(false)
	require.Equal(t, Resync, s.State())
	idx, data := s.CurrentPayload()
	require.Equal(t, byte(14), idx)
	require.Nil(t, data)

	s.Confirm(false)
	require.Equal(t, Resync, s.State())
	s.Confirm(true)
	require.Equal(t, Idle, s.State())
}

func TestSenderWaitConfirmTimeout(t *testing.T) {
	s := New(14)
	s.SetRate(1, 1)
	require.Equal(t, 40, s.MaxWaitCount())
	require.NoError(t, s.Submit(seq(2), 2))
	s.Confirm(true)
	require.Equal(t, WaitUntilNextConfirm, s.State())
	for i := 0; i <= s.MaxWaitCount(); i++ {
		s.Confirm(true)
	}
	require.Equal(t, Resync, s.State())
}

func TestSenderResubmit(t *testing.T) {
	s := New(14)
	require.NoError(t, s.Submit(seq(10), 3))
	s.Confirm(true)
	require.NoError(t, s.Submit(seq(4), 2))
	require.Equal(t, ResyncThenSend, s.State())
	idx, data := s.CurrentPayload()
	require.Equal(t, byte(14), idx)
	require.Nil(t, data)

	// expecting false after one confirmed chunk
	s.Confirm(true)
	require.Equal(t, ResyncThenSend, s.State())
	s.Confirm(false)
	require.Equal(t, Sending, s.State())
	idx, data = s.CurrentPayload()
	require.Equal(t, byte(1), idx)
	require.Equal(t, []byte{1, 2}, data)
}

func TestSenderSetRate(t *testing.T) {
	testCases := []struct {
		ratio, burst, wait int
	}{
		{ratio: 2, burst: 1, wait: 80},
		{ratio: 4, burst: 1, wait: 160},
		{ratio: 8, burst: 3, wait: 200},
		{ratio: 128, burst: 8, wait: 2880},
		{ratio: 2, burst: 0, wait: 80},
	}
	for _, tc := range testCases {
		s := New(14)
		s.SetRate(tc.ratio, tc.burst)
		require.Equal(t, tc.wait, s.MaxWaitCount(), "ratio %d burst %d", tc.ratio, tc.burst)
	}
}

func transfer(s *Sender, r *Receiver, slots int, onSlot func(int)) [][]byte {
	var got [][]byte
	for i := 0; i < slots; i++ {
		if onSlot != nil {
			onSlot(i)
		}
		r.Receive(s.CurrentPayload())
		s.Confirm(r.ConfirmBit())
		if r.Finished() {
			got = append(got, append([]byte(nil), r.Data()...))
			r.Unlock()
		}
	}
	return got
}

func TestSenderReceiver(t *testing.T) {
	s, r := New(14), NewReceiver(14, 65)
	first, second := seq(23), seq(7)
	require.NoError(t, s.Submit(first, 5))
	got := transfer(s, r, 10, nil)
	require.Equal(t, [][]byte{first}, got)
	require.False(t, s.Active())

	require.NoError(t, s.Submit(second, 5))
	got = transfer(s, r, 10, nil)
	require.Equal(t, [][]byte{second}, got)
}

func TestSenderReceiverInterrupted(t *testing.T) {
	s, r := New(14), NewReceiver(14, 65)
	first, second := seq(30), seq(12)
	require.NoError(t, s.Submit(first, 5))
	got := transfer(s, r, 12, func(slot int) {
		if slot == 2 {
			require.NoError(t, s.Submit(second, 5))
		}
	})
	require.Equal(t, [][]byte{second}, got)
	require.False(t, s.Active())
}
