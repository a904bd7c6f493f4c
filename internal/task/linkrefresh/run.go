package linkrefresh

import (
	"context"
	"fmt"

	"lawly-scheduler/internal/blob"
	"lawly-scheduler/internal/store"
	logx "lawly-scheduler/pkg/logx"
)

// linkResult describes what happened to a single link.
type linkResult struct {
	url     string // possibly refreshed
	changed bool
	oldKey  string
	newKey  string // set when the object was re-uploaded
}

// Run refreshes every template file link and reports what changed.
// Per-link and per-template failures are logged and counted, not returned;
// only a failed template listing or a canceled context aborts the run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	var rep Report

	templates, err := r.templates.ListWithFileLinks(ctx)
	if err != nil {
		return rep, fmt.Errorf("list templates: %w", err)
	}
	rep.Templates = len(templates)
	r.log.Info("link refresh started",
		logx.Int("templates", len(templates)),
		logx.Bool("dry_run", r.cfg.DryRun),
	)

	for _, tpl := range templates {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		updated, err := r.refreshTemplate(ctx, tpl, &rep)
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			rep.Failed++
			r.log.Error("template refresh failed",
				logx.Int64("template_id", tpl.ID),
				logx.Err(err),
			)
			continue
		}
		if updated {
			rep.Updated++
		}
	}

	r.log.Info("link refresh finished", rep.Fields()...)
	return rep, nil
}

// refreshTemplate refreshes both links of one template and persists the row
// when anything changed. It returns whether the row was written.
func (r *Runner) refreshTemplate(ctx context.Context, tpl store.Template, rep *Report) (bool, error) {
	download := linkResult{url: tpl.DownloadURL}
	image := linkResult{url: tpl.ImageURL}

	if tpl.DownloadURL != "" {
		res, err := r.refreshLink(ctx, tpl.DownloadURL, rep)
		if err != nil {
			if ctx.Err() != nil {
				return false, err
			}
			rep.Failed++
			r.log.Error("download link refresh failed",
				logx.Int64("template_id", tpl.ID),
				logx.Err(err),
			)
		} else {
			download = res
		}
	}
	if tpl.ImageURL != "" {
		res, err := r.refreshLink(ctx, tpl.ImageURL, rep)
		if err != nil {
			if ctx.Err() != nil {
				return false, err
			}
			rep.Failed++
			r.log.Error("image link refresh failed",
				logx.Int64("template_id", tpl.ID),
				logx.Err(err),
			)
		} else {
			image = res
		}
	}

	if !download.changed && !image.changed {
		return false, nil
	}
	if r.cfg.DryRun {
		rep.Skipped++
		r.log.Info("dry run: template links left unchanged",
			logx.Int64("template_id", tpl.ID),
		)
		return false, nil
	}

	if err := r.templates.UpdateLinks(ctx, tpl.ID, download.url, image.url); err != nil {
		// The row still points at the old links; remove the objects this
		// run created so they don't orphan.
		for _, res := range []linkResult{download, image} {
			if res.newKey == "" {
				continue
			}
			if derr := r.objects.Delete(ctx, res.newKey); derr != nil {
				r.log.Warn("orphan cleanup failed",
					logx.String("key", res.newKey),
					logx.Err(derr),
				)
			}
		}
		return false, fmt.Errorf("update links: %w", err)
	}
	r.log.Info("template links updated",
		logx.Int64("template_id", tpl.ID),
		logx.Bool("download_changed", download.changed),
		logx.Bool("image_changed", image.changed),
	)

	// The row points at the re-uploaded objects now; drop the replaced ones.
	for _, res := range []linkResult{download, image} {
		if res.newKey == "" || res.oldKey == "" || res.oldKey == res.newKey {
			continue
		}
		if err := r.objects.Delete(ctx, res.oldKey); err != nil {
			r.log.Warn("old object delete failed",
				logx.String("key", res.oldKey),
				logx.Err(err),
			)
			continue
		}
		rep.Deleted++
	}
	return true, nil
}

// refreshLink produces a fresh presigned URL for one link, re-uploading the
// object from the link itself when it is gone from the store.
func (r *Runner) refreshLink(ctx context.Context, rawURL string, rep *Report) (linkResult, error) {
	res := linkResult{url: rawURL}

	key, err := blob.KeyFromURL(rawURL)
	if err != nil {
		return res, err
	}
	res.oldKey = key

	if err := r.limiter.Wait(ctx); err != nil {
		return res, err
	}

	exists, err := r.objects.Exists(ctx, key)
	if err != nil {
		return res, fmt.Errorf("check object %s: %w", key, err)
	}

	if exists {
		newURL, err := r.objects.PresignGet(ctx, key, r.cfg.PresignTTL)
		if err != nil {
			return res, fmt.Errorf("presign %s: %w", key, err)
		}
		rep.Refreshed++
		res.url = newURL
		res.changed = newURL != rawURL
		return res, nil
	}

	r.log.Warn("object missing, re-uploading from link", logx.String("key", key))
	if r.cfg.DryRun {
		rep.Reuploaded++
		return res, nil
	}

	newURL, newKey, err := r.reupload(ctx, rawURL)
	if err != nil {
		return res, fmt.Errorf("reupload %s: %w", key, err)
	}
	rep.Reuploaded++
	res.url = newURL
	res.newKey = newKey
	res.changed = true
	return res, nil
}
