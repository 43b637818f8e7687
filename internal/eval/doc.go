// Package eval replays a labelled screenshot dataset through the
// localization cascade and scores each prediction against its ground truth
// box.
//
// A dataset is a directory holding the screenshots and a labels.json file:
//
//	{
//	  "save_dialog.png": {"task": "Click Save", "bbox": [412, 300, 96, 32]},
//	  "settings.png":    {"bbox": [20, 40, 120, 28]}
//	}
//
// Items whose image file is missing are skipped. The summary reports the
// per-item IoU, the mean IoU over evaluated items and the number of hits at
// IoU >= 0.5.
package eval
