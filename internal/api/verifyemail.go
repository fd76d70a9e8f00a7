package api

import "net/http"

// maxBatchSize caps one batch verification request. Each entry costs a DNS
// lookup; an unbounded batch is a resolver amplification vector.
const maxBatchSize = 100

// ─── POST /api/verify-email ───────────────────────────────────────────────────

type verifyEmailRequest struct {
	Email string `json:"email"`
}

// handleVerifyEmail returns the verification record for one address.
// Verification never fails: malformed input is a classified result, so the
// response is 200 either way.
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decode(w, r, &req) {
		return
	}

	respond(w, http.StatusOK, s.verifier.Verify(r.Context(), req.Email))
}

// ─── POST /api/verify-email/batch ─────────────────────────────────────────────

type verifyEmailBatchRequest struct {
	Emails []string `json:"emails"`
}

// handleVerifyEmailBatch verifies many addresses concurrently. Results come
// back in request order, one per input, including the failures.
func (s *Server) handleVerifyEmailBatch(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailBatchRequest
	if !decode(w, r, &req) {
		return
	}

	if len(req.Emails) == 0 {
		respondErr(w, http.StatusBadRequest, "emails is required")
		return
	}
	if len(req.Emails) > maxBatchSize {
		respondErr(w, http.StatusBadRequest, "too many emails in one batch")
		return
	}

	respond(w, http.StatusOK, s.verifier.VerifyBatch(r.Context(), req.Emails))
}
