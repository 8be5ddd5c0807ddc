// Package push delivers notifications to browser push endpoints.
//
// WebPushSender implements the Web Push protocol with VAPID authentication on
// top of webpush-go. Endpoint descriptors are the JSON subscriptions produced by
// PushManager.subscribe in the browser.
package push
