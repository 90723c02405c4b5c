package assistant

// EstimateTokens approximates the token count of rendered context text as
// ceil(len/4). Good enough for budget metadata; never used for billing.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}
