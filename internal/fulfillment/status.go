package fulfillment

// DeriveStatus maps the current set of line quantities to a header status.
// Pure and deterministic: the same lines always yield the same status, and a
// successful transaction never moves the header to a lower-fulfillment state.
//
// prev is returned unchanged while no fulfillment has occurred, so draft and
// planned orders keep their status across no-op recomputations.
func DeriveStatus(kind OrderKind, prev Status, lines []Line) Status {
	switch kind {
	case KindPurchase:
		return derivePurchaseStatus(prev, lines)
	case KindTransfer:
		return deriveTransferStatus(prev, lines)
	}
	return prev
}

func derivePurchaseStatus(prev Status, lines []Line) Status {
	anyReceived := false
	allComplete := len(lines) > 0
	for _, l := range lines {
		if l.ReceivedQty.Sign() > 0 {
			anyReceived = true
		}
		if l.ReceivedQty.LessThan(l.OrderedQty) {
			allComplete = false
		}
	}
	if !anyReceived {
		return prev
	}
	if allComplete {
		return StatusClosed
	}
	return StatusPartial
}

func deriveTransferStatus(prev Status, lines []Line) Status {
	anyShipped := false
	shipComplete := len(lines) > 0
	anyReceived := false
	recvComplete := true
	for _, l := range lines {
		if l.ShippedQty.Sign() > 0 {
			anyShipped = true
		}
		if l.ShippedQty.LessThan(l.OrderedQty) {
			shipComplete = false
		}
		if l.ReceivedQty.Sign() > 0 {
			anyReceived = true
		}
		// Receive completion is judged against shipped quantity only;
		// unshipped lines do not block it.
		if l.ShippedQty.Sign() > 0 && l.ReceivedQty.LessThan(l.ShippedQty) {
			recvComplete = false
		}
	}

	if !anyShipped {
		return prev
	}
	if anyReceived {
		if recvComplete && shipComplete {
			return StatusReceived
		}
		return StatusPartiallyReceived
	}
	if shipComplete {
		return StatusShipped
	}
	return StatusPartiallyShipped
}
