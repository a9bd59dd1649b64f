package wire

import "fmt"

// frameString renders a frame for debug logging, grounded on quic-go's
// internal/wire/log.go LogFrame helper.
func frameString(f Frame) string {
	switch v := f.(type) {
	case *StreamFrame:
		return fmt.Sprintf("&StreamFrame{StreamID: %d, Offset: %d, Fin: %t, Data: %d bytes}", v.StreamID, v.Offset, v.Fin, len(v.Data))
	case *AckFrame:
		return fmt.Sprintf("&AckFrame{LargestAcked: %d, FirstRange: %d, AdditionalRanges: %d}", v.LargestAcked, v.FirstRange, len(v.AdditionalRanges))
	case *ResetStreamFrame:
		return fmt.Sprintf("&ResetStreamFrame{StreamID: %d, ErrorCode: %d, FinalSize: %d}", v.StreamID, v.ErrorCode, v.FinalSize)
	case *CryptoFrame:
		return fmt.Sprintf("&CryptoFrame{Offset: %d, Data: %d bytes}", v.Offset, len(v.Data))
	case *ConnectionCloseFrame:
		return fmt.Sprintf("&ConnectionCloseFrame{ErrorCode: %d, Reason: %q}", v.ErrorCode, v.ReasonPhrase)
	default:
		return fmt.Sprintf("%T", f)
	}
}
