// Package mocks provides shared test doubles for the service and store
// interfaces, so handler and service tests do not each define their own.
//
// Each mock has function fields that override its default behaviour:
//
//	reviews := mocks.NewMockCardReviewService(
//	    mocks.WithError(card_review.ErrCardNotFound),
//	)
//
// The store mocks keep their data in memory and return themselves from
// WithTx, so they can stand in for transactional stores.
package mocks
