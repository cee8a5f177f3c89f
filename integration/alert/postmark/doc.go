// Package postmark delivers operator alerts by e-mail through Postmark.
//
// The Alerter implements dispatch.Alerter and is usually combined with the log
// and channel alerters:
//
//	mail, err := postmark.New(cfg)
//	if err != nil {
//		return err
//	}
//	alerter := dispatch.MultiAlerter(dispatch.NewLogAlerter(log), mail)
//
// Configuration is read from POSTMARK_SERVER_TOKEN, POSTMARK_ACCOUNT_TOKEN,
// ALERT_SENDER_EMAIL and ALERT_RECIPIENTS. Config.Enabled reports whether the
// alerter should be wired at all, so development setups can leave it off.
package postmark
