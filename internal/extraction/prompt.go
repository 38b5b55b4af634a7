package extraction

// extractionPrompt is the fixed instruction sent with every recomposition
// call. It asks the model for an enlarged, faithful redraw of the garment's
// printed design on a maximally contrasting solid background.
const extractionPrompt = `You are a professional design extraction tool. Extract and ENLARGE the printed design from this shirt photo. CRITICAL REQUIREMENTS: 1) MASSIVE SIZE - Minimum 3000x3000px, ideally 4000x4000+. FILL 95%+ of frame, zoom in close, tight crop. 2) PRESERVE ALL LAYERS & EFFECTS - If design has STROKES/OUTLINES around text or shapes, you MUST recreate them EXACTLY. If it has SHADOWS or GLOWS, keep them. If it has MULTIPLE LAYERS, recreate ALL layers. Do NOT flatten or simplify multi-layered designs. 3) ALL COLORS & ACCENTS - Recreate EVERY color exactly. If there are light blue, teal, or any accent colors, keep them ALL. Match gradients, color variations, and effects perfectly. 4) STROKES ARE CRITICAL - Many designs have colored outlines/strokes around letters or shapes. You MUST preserve these strokes with exact thickness, color, and style. Do NOT remove strokes. 5) EXTRACT DESIGN ONLY - Extract ONLY the graphic/logo/text. NEVER recreate the shirt, fabric, or garment. Just the artwork, massively enlarged. 6) INTELLIGENT BACKGROUND - WHITE/LIGHT designs -> SOLID BLACK background (#000000). DARK/BLACK designs -> SOLID WHITE background (#FFFFFF). MULTICOLOR -> Choose maximum contrast. Background must be perfectly uniform. 7) PERFECT ACCURACY - Pixel-perfect recreation. Keep all complexity, text, effects, shadows, strokes, outlines, and layers. Do NOT simplify ANYTHING. Output: MASSIVE PNG (3000px+ min) of ONLY the design, tightly cropped to fill 95%+ of frame, with ALL strokes/outlines/effects/layers preserved, on solid contrasting background.`
