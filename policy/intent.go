// Copyright (c) 2025 The DataBridge Project and its Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package policy

// IntentKind names a request to move a transfer along one edge of the state
// machine. Human intents arrive through the HTTP surface; worker intents are
// produced by the scan, copy, and verify pipelines.
type IntentKind string

const (
	IntentSubmit       IntentKind = "submit"
	IntentApprove      IntentKind = "approve"
	IntentReject       IntentKind = "reject"
	IntentOverride     IntentKind = "override"
	IntentCancel       IntentKind = "cancel"
	IntentStartScan    IntentKind = "start_scan"
	IntentCompleteScan IntentKind = "complete_scan"
	IntentPrepare      IntentKind = "prepare"
	IntentExecute      IntentKind = "execute"
	IntentCopyDone     IntentKind = "copy_done"
	IntentCopyError    IntentKind = "copy_error"
	IntentVerifyOK     IntentKind = "verify_ok"
	IntentVerifyFailed IntentKind = "verify_failed"
)

func (k IntentKind) String() string {
	return string(k)
}
