package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the SentinelX MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolScanText = mcp.NewTool("scan_text",
	mcp.WithDescription(
		"Scan text for sensitive data leaks and manipulation markers before sending it. "+
			"Detects private keys, seed phrases, credit cards, SSNs, API keys, passwords, "+
			"and urgency or secrecy pressure. Returns a severity verdict and per-finding breakdown. "+
			"Use this on any outbound message that might contain sensitive content."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The content to scan")),
	mcp.WithString("identity",
		mcp.Description("Identity the content belongs to. When set, the scan is recorded and feeds trust scoring.")),
	mcp.WithBoolean("use_advisory",
		mcp.Description("Also consult the advisory classifier for a second opinion (slower)")),
)

var ToolRedactText = mcp.NewTool("redact_text",
	mcp.WithDescription(
		"Replace sensitive spans in text with typed placeholders like [REDACTED_PRIVATE_KEY]. "+
			"Safe to run on already-redacted text. Use this to sanitize content before logging or forwarding."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The content to redact")),
)

var ToolScoreLogin = mcp.NewTool("score_login",
	mcp.WithDescription(
		"Score a login attempt against the identity's history. "+
			"Weighs device novelty, country novelty, burst frequency, and off-hours timing. "+
			"Returns a risk level (low/medium/high) and a recommended action."),
	mcp.WithString("identity",
		mcp.Required(),
		mcp.Description("The identity attempting to log in")),
	mcp.WithString("device_fingerprint",
		mcp.Description("Device fingerprint of the attempt")),
	mcp.WithString("country",
		mcp.Description("Two-letter country code of the attempt origin (e.g. 'US')")),
)

var ToolEvaluateTransfer = mcp.NewTool("evaluate_transfer",
	mcp.WithDescription(
		"Evaluate a proposed ETH transfer for risk before executing it. "+
			"Weighs amount deviation from the sender's history, frequency, recipient novelty, "+
			"and urgency language in the surrounding conversation. "+
			"A blocked verdict starts a cooldown on the sender."),
	mcp.WithString("sender",
		mcp.Required(),
		mcp.Description("Sender address (0x...)")),
	mcp.WithString("recipient",
		mcp.Required(),
		mcp.Description("Recipient address (0x...)")),
	mcp.WithNumber("amount_eth",
		mcp.Required(),
		mcp.Description("Amount in ETH")),
	mcp.WithString("chat_context",
		mcp.Description("Conversation text surrounding the transfer request, checked for pressure phrases")),
)

var ToolGetTrustState = mcp.NewTool("get_trust_state",
	mcp.WithDescription(
		"Get the current trust score and enforcement status for an identity. "+
			"Status is one of active, step_up_required, restricted, or locked. "+
			"Unknown identities report full trust."),
	mcp.WithString("identity",
		mcp.Required(),
		mcp.Description("The identity to look up")),
)

var ToolCheckAction = mcp.NewTool("check_action",
	mcp.WithDescription(
		"Ask whether an identity may perform an action right now under its enforcement status. "+
			"Use this before attempting a login, transfer, or content send on the identity's behalf."),
	mcp.WithString("identity",
		mcp.Required(),
		mcp.Description("The identity to check")),
	mcp.WithString("action",
		mcp.Required(),
		mcp.Description("The action to check"),
		mcp.Enum("login", "transfer", "content_send", "read")),
)

var ToolGetAuditStats = mcp.NewTool("get_audit_stats",
	mcp.WithDescription(
		"Get Merkle audit batcher statistics: pending event count, total batches cut, "+
			"and summaries of recent batches with their roots."),
)

var ToolVerifyAuditProof = mcp.NewTool("verify_audit_proof",
	mcp.WithDescription(
		"Verify a Merkle inclusion proof for an audited event. "+
			"Confirms the event hash was part of the batch with the given root without trusting the server's stored state."),
	mcp.WithString("event_hash",
		mcp.Required(),
		mcp.Description("The event hash to verify (hex)")),
	mcp.WithString("merkle_root",
		mcp.Required(),
		mcp.Description("The batch's Merkle root (hex)")),
	mcp.WithArray("proof",
		mcp.Description("Sibling hashes from leaf to root, as returned by the proof endpoint")),
)
