// Package service groups the application services that sit between the HTTP
// layer and the stores.
//
// Subpackages:
//   - auth: JWT issuance and validation
//   - card_review: queue building, interval previews and answer submission
//   - study: in-memory study sessions with learning-step requeueing
//   - importing: transactional collection imports
package service
