// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package renpho

import "time"

// # Vendor API Surface

const (
	// DefaultBaseURL is the production Renpho cloud endpoint.
	DefaultBaseURL = "https://cloud.renpho.com"

	// encryptionKey is the fixed AES-128 key the vendor protocol uses for
	// every request and response body. It ships inside the mobile app and
	// provides wire compatibility only, not confidentiality.
	encryptionKey = "ed*wijdi$h6fe3ew"

	// appVersion is the mobile app release the API expects in headers and
	// in the login payload.
	appVersion = "7.5.0"

	// endpointLogin is the aggregated account login RPC.
	endpointLogin = "renpho-aggregation/user/login"

	// endpointDailyMeasurements returns the measurements recorded on a
	// given day, keyed by scale electrode variant.
	endpointDailyMeasurements = "RenphoHealth/healthManage/dailyCalories"

	// requestTimeout bounds every RPC. There is no mid-flight cancellation
	// beyond this deadline.
	requestTimeout = 30 * time.Second

	// codeSuccess is the vendor's "everything is fine" response code.
	codeSuccess = 101
)

// deviceTypes is the body-weight scale allow-list sent with the login
// payload so the account binding covers all supported scale models.
var deviceTypes = []string{"02D3", "02D5", "0B18", "0B38", "0B58", "0B78", "0BA6"}

// # Auth-Failure Classification

// The vendor API is inconsistent about signalling auth failures: some
// endpoints return a dedicated numeric code, others a generic code with a
// free-text message. Both signals are checked.
var (
	authErrorCodes = []int{102, 103, 104, 401, 403}

	authErrorKeywords = []string{"token", "login", "unauthorized", "expired", "invalid", "forbidden"}
)
